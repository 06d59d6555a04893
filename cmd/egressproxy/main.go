// Command egressproxy runs the security egress proxy.
package main

import "github.com/sentinelgate/egressproxy/cmd/egressproxy/cmd"

func main() {
	cmd.Execute()
}
