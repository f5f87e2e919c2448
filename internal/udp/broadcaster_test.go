package udp

import (
	"bytes"
	"errors"
	"net"
	"testing"
)

func dialTo(fc *fakeConn, raddr **net.UDPAddr) dialFunc {
	return func(network string, laddr, addr *net.UDPAddr) (udpConn, error) {
		if network != "udp" || laddr != nil {
			return nil, errors.New("unexpected dial arguments")
		}
		if raddr != nil {
			*raddr = addr
		}
		return fc, nil
	}
}

func TestNewBroadcaster_ResolvesAndKeepsDest(t *testing.T) {
	var raddr *net.UDPAddr
	b, err := newBroadcaster("192.168.10.255:5017", net.ResolveUDPAddr, dialTo(&fakeConn{}, &raddr))
	if err != nil {
		t.Fatalf("newBroadcaster() error: %v", err)
	}
	if b.Dest() != "192.168.10.255:5017" {
		t.Fatalf("dest=%q", b.Dest())
	}
	if raddr == nil || raddr.Port != 5017 || !raddr.IP.Equal(net.IPv4(192, 168, 10, 255)) {
		t.Fatalf("dialed %v want 192.168.10.255:5017", raddr)
	}
}

func TestNewBroadcaster_Failures(t *testing.T) {
	resolveErr := errors.New("no such host")
	dialErr := errors.New("network is unreachable")

	cases := []struct {
		name    string
		resolve resolveFunc
		dial    dialFunc
		want    error
	}{
		{
			name:    "resolve",
			resolve: func(string, string) (*net.UDPAddr, error) { return nil, resolveErr },
			dial:    dialTo(&fakeConn{}, nil),
			want:    resolveErr,
		},
		{
			name:    "dial",
			resolve: net.ResolveUDPAddr,
			dial:    func(string, *net.UDPAddr, *net.UDPAddr) (udpConn, error) { return nil, dialErr },
			want:    dialErr,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := newBroadcaster("127.0.0.1:5017", tc.resolve, tc.dial)
			if !errors.Is(err, tc.want) || b != nil {
				t.Fatalf("b=%v err=%v want %v", b, err, tc.want)
			}
		})
	}
}

func TestBroadcaster_Send(t *testing.T) {
	fc := &fakeConn{}
	b := &Broadcaster{dest: "127.0.0.1:5017", conn: fc}

	for _, p := range [][]byte{nil, {}} {
		if err := b.Send(p); err != nil {
			t.Fatalf("Send(%v) error: %v", p, err)
		}
	}
	if fc.writeHits != 0 {
		t.Fatalf("empty payloads wrote %d datagrams", fc.writeHits)
	}

	frame := []byte{0x10, 0x46, 0x00, 0x00, 0x10, 0x03}
	if err := b.Send(frame); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if fc.writeHits != 1 || !bytes.Equal(fc.writes[0], frame) {
		t.Fatalf("writes=%v want one datagram % X", fc.writes, frame)
	}

	fc.writeErr = errors.New("message too long")
	if err := b.Send(frame); !errors.Is(err, fc.writeErr) {
		t.Fatalf("err=%v want %v", err, fc.writeErr)
	}
}

func TestBroadcaster_Close(t *testing.T) {
	if err := (&Broadcaster{}).Close(); err != nil {
		t.Fatalf("Close() without conn: %v", err)
	}

	closeErr := errors.New("already closed")
	fc := &fakeConn{closeErr: closeErr}
	if err := (&Broadcaster{conn: fc}).Close(); !errors.Is(err, closeErr) || !fc.closed {
		t.Fatalf("err=%v closed=%v", err, fc.closed)
	}
}
