package proxy

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
)

// writeJSONRaw marshals payload and writes it directly to conn as an
// HTTP/1.1 response with Connection: close — the Forwarding and
// LocalRequest states never offer keep-alive, per the per-connection state
// machine.
func writeJSONRaw(conn net.Conn, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{"error":"Internal Server Error"}`)
		status = http.StatusInternalServerError
	}
	header := "HTTP/1.1 " + strconv.Itoa(status) + " " + http.StatusText(status) +
		"\r\nContent-Type: application/json\r\nContent-Length: " + strconv.Itoa(len(body)) +
		"\r\nConnection: close\r\n\r\n"
	conn.Write([]byte(header))
	conn.Write(body)
}
