package syncengine

import (
	"context"
	"testing"
	"time"

	"mtclient/src/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

func newTestRpc(fs *fakeServer) (*RpcConnection, *Connection) {
	conn, tc := newTestConnection(fs)
	return NewRpcConnection(tc), conn
}

func connectAndAuthenticate(t *testing.T, fs *fakeServer, conn *Connection) *websocket.Conn {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = conn.Connect(ctx)
	}()
	server := fs.nextConn(t)
	require.NoError(t, server.WriteJSON(map[string]interface{}{"type": "authenticated"}))
	return server
}

// -----------------------------------------------------------------------------

func TestGetAccountInformationDecodesReply(t *testing.T) {
	fs := newFakeServer(t)
	defer fs.httptest.Close()

	rpc, conn := newTestRpc(fs)
	defer conn.Close()
	server := connectAndAuthenticate(t, fs, conn)

	go func() {
		var decoded map[string]interface{}
		_ = server.ReadJSON(&decoded)
		server.WriteJSON(map[string]interface{}{
			"type":      "response",
			"requestId": decoded["requestId"],
			"accountInformation": map[string]interface{}{
				"platform": "mt5",
				"broker":   "Test Broker",
				"balance":  10000.0,
			},
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	info, err := rpc.GetAccountInformation(ctx, "0:ps-mpa-1")
	require.NoError(t, err)
	require.Equal(t, "Test Broker", info.Broker)
	require.Equal(t, 10000.0, info.Balance)
}

// -----------------------------------------------------------------------------

func TestGetPositionReturnsNotFoundWhenAbsent(t *testing.T) {
	fs := newFakeServer(t)
	defer fs.httptest.Close()

	rpc, conn := newTestRpc(fs)
	defer conn.Close()
	server := connectAndAuthenticate(t, fs, conn)

	go func() {
		var decoded map[string]interface{}
		_ = server.ReadJSON(&decoded)
		server.WriteJSON(map[string]interface{}{"type": "response", "requestId": decoded["requestId"]})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := rpc.GetPosition(ctx, "0:ps-mpa-1", "missing")
	require.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestGetHistoryOrdersByTicketDecodesDoneTime(t *testing.T) {
	fs := newFakeServer(t)
	defer fs.httptest.Close()

	rpc, conn := newTestRpc(fs)
	defer conn.Close()
	server := connectAndAuthenticate(t, fs, conn)

	done := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	go func() {
		var decoded map[string]interface{}
		_ = server.ReadJSON(&decoded)
		server.WriteJSON(map[string]interface{}{
			"type":      "response",
			"requestId": decoded["requestId"],
			"historyOrders": []interface{}{
				map[string]interface{}{"id": "1", "symbol": "EURUSD", "doneTime": done},
			},
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	orders, err := rpc.GetHistoryOrdersByTicket(ctx, "0:ps-mpa-1", "1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.False(t, orders[0].DoneTime.IsZero())
}

// -----------------------------------------------------------------------------

func TestTradeRejectsOversizedCommentWithoutARoundTrip(t *testing.T) {
	fs := newFakeServer(t)
	defer fs.httptest.Close()

	rpc, conn := newTestRpc(fs)
	defer conn.Close()
	_ = connectAndAuthenticate(t, fs, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := rpc.Trade(ctx, "0:ps-mpa-1", &models.TradeRequest{
		ActionType: models.ActionOrderTypeBuy,
		Comment:    "this comment is deliberately far too long",
	})
	require.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestTradeReturnsTradeErrorOnNonZeroNumericCode(t *testing.T) {
	fs := newFakeServer(t)
	defer fs.httptest.Close()

	rpc, conn := newTestRpc(fs)
	defer conn.Close()
	server := connectAndAuthenticate(t, fs, conn)

	go func() {
		var decoded map[string]interface{}
		_ = server.ReadJSON(&decoded)
		server.WriteJSON(map[string]interface{}{
			"type":        "response",
			"requestId":   decoded["requestId"],
			"numericCode": 10004.0,
			"stringCode":  "TRADE_RETCODE_REJECT",
			"message":     "rejected by broker",
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := rpc.Trade(ctx, "0:ps-mpa-1", &models.TradeRequest{
		ActionType: models.ActionOrderTypeBuy,
		Symbol:     "EURUSD",
		Volume:     1,
	})
	require.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestTradeSucceedsOnDoneCode(t *testing.T) {
	fs := newFakeServer(t)
	defer fs.httptest.Close()

	rpc, conn := newTestRpc(fs)
	defer conn.Close()
	server := connectAndAuthenticate(t, fs, conn)

	go func() {
		var decoded map[string]interface{}
		_ = server.ReadJSON(&decoded)
		server.WriteJSON(map[string]interface{}{
			"type":        "response",
			"requestId":   decoded["requestId"],
			"numericCode": 10009.0,
			"orderId":     "123",
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := rpc.Trade(ctx, "0:ps-mpa-1", &models.TradeRequest{
		ActionType: models.ActionOrderTypeBuy,
		Symbol:     "EURUSD",
		Volume:     1,
	})
	require.NoError(t, err)
	require.Equal(t, "123", resp.OrderID)
}
