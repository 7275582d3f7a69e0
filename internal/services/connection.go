package services

import (
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	connectionTimeout = 10 * time.Second
)

// ConnectionTestResult reports the outcome of a connectivity probe
type ConnectionTestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TestIMAPConnection probes an IMAP server: dial, read the greeting, done.
// Used by the CLI and API to validate account settings before saving;
// authentication is not attempted.
func TestIMAPConnection(host string, port int, useSSL bool) ConnectionTestResult {
	addr := fmt.Sprintf("%s:%d", host, port)

	var conn net.Conn
	var err error

	dialer := &net.Dialer{
		Timeout: connectionTimeout,
	}

	if useSSL {
		tlsConfig := &tls.Config{ServerName: host}
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}

	if err != nil {
		return ConnectionTestResult{
			Success: false,
			Message: fmt.Sprintf("Failed to connect to IMAP server: %v", err),
		}
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(connectionTimeout))

	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		return ConnectionTestResult{
			Success: false,
			Message: fmt.Sprintf("Failed to read IMAP greeting: %v", err),
		}
	}

	greeting := string(buf[:n])
	if !strings.HasPrefix(greeting, "* OK") && !strings.HasPrefix(greeting, "* PREAUTH") {
		return ConnectionTestResult{
			Success: false,
			Message: fmt.Sprintf("Unexpected IMAP greeting: %s", strings.TrimSpace(greeting)),
		}
	}

	return ConnectionTestResult{
		Success: true,
		Message: "IMAP connection successful",
	}
}
