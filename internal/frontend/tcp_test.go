package frontend

import (
	"bufio"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/tomb.v2"

	"ironbook/internal/book"
	"ironbook/internal/parser"
	"ironbook/internal/queue"
)

func TestTCPServerSubmitsOrderAndAcks(t *testing.T) {
	submission := queue.New()
	defer submission.Close()

	srv := NewTCPServer("127.0.0.1:0", submission, parser.New(book.NewClock()))

	var tb tomb.Tomb
	tb.Go(func() error { return srv.Run(&tb) })
	defer func() {
		tb.Kill(nil)
		_ = tb.Wait()
	}()

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"side":"buy","price":100.50,"quantity":10}` + "\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "ACK: order")

	orders := submission.RecvAll()
	require.Len(t, orders, 1)
	require.Equal(t, book.Buy, orders[0].Side)
	require.Equal(t, book.Price(10050), orders[0].Price)
}

func TestTCPServerRejectsMalformedLine(t *testing.T) {
	submission := queue.New()
	defer submission.Close()

	srv := NewTCPServer("127.0.0.1:0", submission, parser.New(book.NewClock()))

	var tb tomb.Tomb
	tb.Go(func() error { return srv.Run(&tb) })
	defer func() {
		tb.Kill(nil)
		_ = tb.Wait()
	}()

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not json\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "ERR:")
}
