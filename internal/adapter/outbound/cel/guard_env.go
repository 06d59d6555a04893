package cel

import (
	"net"
	"path/filepath"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
)

// NewAllowlistGuardEnvironment creates a CEL environment for evaluating a
// per-allowlist-entry guard expression. Grounded on the teacher's
// NewUniversalPolicyEnvironment (internal/adapter/outbound/cel) but
// retargeted: instead of tool_name/tool_args/user_roles, the variables
// describe the outbound request the entry already matched on host —
// method, host, path — plus glob and CIDR helper functions over strings.
// No resolved destination address is exposed to the expression.
func NewAllowlistGuardEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(),

		cel.Variable("method", cel.StringType),
		cel.Variable("host", cel.StringType),
		cel.Variable("path", cel.StringType),

		// glob: shell-style pattern match, e.g. glob(path, "/v1/*").
		cel.Function("glob",
			cel.Overload("glob_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(value, pattern ref.Val) ref.Val {
					v := value.Value().(string)
					p := pattern.Value().(string)
					matched, _ := filepath.Match(p, v)
					return types.Bool(matched)
				}),
			),
		),

		// ip_in_cidr: checks if an IP address string falls within a CIDR
		// range; false when the string is not an IP. Usage:
		// ip_in_cidr(host, "10.0.0.0/8") for a host given as an IP literal.
		cel.Function("ip_in_cidr",
			cel.Overload("ip_in_cidr_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(ipVal, cidrVal ref.Val) ref.Val {
					ip := net.ParseIP(ipVal.Value().(string))
					if ip == nil {
						return types.Bool(false)
					}
					_, network, err := net.ParseCIDR(cidrVal.Value().(string))
					if err != nil {
						return types.Bool(false)
					}
					return types.Bool(network.Contains(ip))
				}),
			),
		),
	)
}
