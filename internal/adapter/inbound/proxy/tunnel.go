package proxy

import (
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sentinelgate/egressproxy/internal/domain/allowlist"
	"github.com/sentinelgate/egressproxy/internal/domain/audit"
)

const armTunnel = "tunnel"

// handleConnect implements the CONNECT tunneling arm: consult the
// allowlist, then either splice bytes opaquely between client and upstream
// (no TLS interception, no content inspection) or deny. Tunneling is
// terminal for the connection once splicing begins.
func (s *Server) handleConnect(conn net.Conn, req *http.Request) {
	start := time.Now()

	authority := req.Host
	if authority == "" {
		authority = req.URL.Host
	}
	host, portStr, err := net.SplitHostPort(authority)
	if err != nil {
		host = authority
		portStr = "443"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 443
	}

	record := audit.Record{RequestID: requestIDFrom(req.Context()), Method: http.MethodConnect, Hostname: host, Port: port}

	decision := s.deps.Allowlist.Check(allowlist.RequestVars{
		Method: http.MethodConnect,
		Host:   host,
		Path:   "",
	})
	if !decision.Allowed {
		s.deps.Metrics.observeDenial(armTunnel)
		record.Allowed = false
		record.BlockedReason = decision.Reason
		record.ResponseStatus = http.StatusForbidden
		record.DurationMS = time.Since(start).Milliseconds()
		s.deps.Audit.Log(record)
		writeHijackedError(conn, http.StatusForbidden, decision.Reason)
		return
	}

	upstream, err := s.dial(req.Context(), "tcp", net.JoinHostPort(host, portStr))
	if err != nil {
		record.Allowed = true
		record.ResponseStatus = http.StatusBadGateway
		record.DurationMS = time.Since(start).Milliseconds()
		s.deps.Audit.Log(record)
		s.deps.Audit.LogError("tunnel: upstream dial failed", err)
		writeHijackedError(conn, http.StatusBadGateway, "Failed to reach upstream")
		return
	}
	defer upstream.Close()

	record.Allowed = true
	record.DurationMS = time.Since(start).Milliseconds()
	s.deps.Audit.Log(record)
	s.deps.Metrics.observeRequest(armTunnel, time.Since(start).Seconds())

	if _, err := conn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		s.deps.Audit.LogError("tunnel: failed writing 200 to client", err)
		return
	}

	splice(conn, upstream)
}

// splice copies bytes bidirectionally between client and upstream until
// either side closes or errors; it is the last step of the Tunneling state,
// terminal for the connection.
func splice(client, upstream net.Conn) {
	done := make(chan struct{}, 2)
	go func() {
		io.Copy(upstream, client)
		if c, ok := upstream.(interface{ CloseWrite() error }); ok {
			c.CloseWrite()
		}
		done <- struct{}{}
	}()
	go func() {
		io.Copy(client, upstream)
		if c, ok := client.(interface{ CloseWrite() error }); ok {
			c.CloseWrite()
		}
		done <- struct{}{}
	}()
	<-done
	<-done
}

// writeHijackedError writes a minimal HTTP error response directly to a raw
// net.Conn, used by the tunneling arm which never constructs an
// http.ResponseWriter.
func writeHijackedError(conn net.Conn, status int, reason string) {
	body := `{"error":"Forbidden","reason":"` + jsonEscape(reason) + `"}`
	if status == http.StatusBadGateway {
		body = `{"error":"Failed to reach upstream","message":"` + jsonEscape(reason) + `"}`
	}
	resp := "HTTP/1.1 " + strconv.Itoa(status) + " " + http.StatusText(status) +
		"\r\nContent-Type: application/json\r\nContent-Length: " + strconv.Itoa(len(body)) +
		"\r\nConnection: close\r\n\r\n" + body
	_, _ = conn.Write([]byte(resp))
}

func jsonEscape(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return replacer.Replace(s)
}
