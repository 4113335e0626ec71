package delivery

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"
)

// fakeSMTP accepts one connection, walks through a plain SMTP transaction and
// sends the DATA payload on the returned channel.
func fakeSMTP(t *testing.T, hello, from, rcpt string) (string, int, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	dataCh := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
		br := bufio.NewReader(conn)
		bw := bufio.NewWriter(conn)
		reply := func(line string) {
			fmt.Fprint(bw, line+"\r\n")
			bw.Flush()
		}

		reply("220 test ESMTP")
		expectCommand(t, br, "EHLO "+hello, "HELO "+hello)
		reply("250 OK")
		expectCommand(t, br, "MAIL FROM:<"+from+">")
		reply("250 OK")
		expectCommand(t, br, "RCPT TO:<"+rcpt+">")
		reply("250 OK")
		expectCommand(t, br, "DATA")
		reply("354 End data with <CR><LF>.<CR><LF>")

		var lines []string
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				t.Errorf("read data error: %v", err)
				return
			}
			if line == ".\r\n" {
				break
			}
			lines = append(lines, line)
		}
		dataCh <- strings.Join(lines, "")
		reply("250 OK")

		expectCommand(t, br, "QUIT")
		reply("221 Bye")
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	return "127.0.0.1", port, dataCh
}

func TestDeliverSuccess(t *testing.T) {
	host, port, dataCh := fakeSMTP(t, "mailer.test", "sender@example.com", "rcpt@example.com")

	s := session{host: host, port: strconv.Itoa(port), hello: "mailer.test"}
	if err := deliver(context.Background(), s, "sender@example.com", "rcpt@example.com", []byte("Subject: Test\r\n\r\nBody")); err != nil {
		t.Fatalf("deliver returned error: %v", err)
	}

	select {
	case body := <-dataCh:
		if !strings.Contains(body, "Subject: Test") || !strings.Contains(body, "Body") {
			t.Fatalf("unexpected body %q", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for SMTP data")
	}
}

func TestDeliverDialError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)
	ln.Close()

	s := session{host: "127.0.0.1", port: port, hello: "mailer.test"}
	err = deliver(context.Background(), s, "sender@example.com", "rcpt@example.com", []byte("Body"))
	if err == nil || !strings.HasPrefix(err.Error(), "dial:") {
		t.Fatalf("expected dial error, got %v", err)
	}
}

func expectCommand(t *testing.T, br *bufio.Reader, allowed ...string) {
	t.Helper()
	line, err := br.ReadString('\n')
	if err != nil {
		t.Errorf("read command error: %v", err)
		return
	}
	line = strings.TrimRight(line, "\r\n")
	for _, option := range allowed {
		if line == option {
			return
		}
	}
	t.Errorf("unexpected command %q", line)
}
