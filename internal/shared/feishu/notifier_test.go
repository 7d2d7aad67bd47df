package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
)

type fakeFeishu struct {
	tokenCalls atomic.Int32
	mu         sync.Mutex
	lastBody   SendMessageRequest
	lastAuth   string
	lastQuery  string
	msgCode    int
}

func (f *fakeFeishu) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/open-apis/auth/v3/app_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "cli_app", body["app_id"])
		fmt.Fprint(w, `{"code":0,"msg":"ok","app_access_token":"t-123","expire":7200}`)
	})
	mux.HandleFunc("/open-apis/im/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastAuth = r.Header.Get("Authorization")
		f.lastQuery = r.URL.RawQuery
		json.NewDecoder(r.Body).Decode(&f.lastBody)
		if f.msgCode != 0 {
			fmt.Fprintf(w, `{"code":%d,"msg":"bot is not in the chat"}`, f.msgCode)
			return
		}
		fmt.Fprint(w, `{"code":0,"msg":"success","data":{"message_id":"om_1"}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNotifier_SendsBatchCard(t *testing.T) {
	fake := &fakeFeishu{}
	srv := fake.server(t)
	n := NewNotifier(NewClient(srv.URL, "cli_app", "secret"), "oc_chat", zap.NewNop())

	summary := entity.BatchSummary{
		BatchID:    "01JNM3Z5QK7W1H2C3D4E5F6G7H",
		Count:      2,
		WOIDs:      []string{"UW25030101", "UW25030102"},
		WriterName: "张三",
		WrittenAt:  "2025-03-01 08:30:00",
	}
	require.NoError(t, n.NotifyBatchCommitted(context.Background(), summary))
	require.NoError(t, n.NotifyBatchCommitted(context.Background(), summary))

	assert.EqualValues(t, 1, fake.tokenCalls.Load(), "token is cached")
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "Bearer t-123", fake.lastAuth)
	assert.Equal(t, "receive_id_type=chat_id", fake.lastQuery)
	assert.Equal(t, "oc_chat", fake.lastBody.ReceiveID)
	assert.Equal(t, "interactive", fake.lastBody.MsgType)

	var card InteractiveCard
	require.NoError(t, json.Unmarshal([]byte(fake.lastBody.Content), &card))
	assert.Equal(t, "green", card.Header.Template)
	assert.Contains(t, card.Elements[1].Text.Content, "UW25030101、UW25030102")
}

func TestNotifier_APIError(t *testing.T) {
	fake := &fakeFeishu{msgCode: 230002}
	srv := fake.server(t)
	n := NewNotifier(NewClient(srv.URL, "cli_app", "secret"), "oc_chat", zap.NewNop())

	err := n.NotifyBatchCommitted(context.Background(), entity.BatchSummary{BatchID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "230002")
}

func TestNewBatchCommittedCard_TruncatesIDs(t *testing.T) {
	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("UW250301%02d", i+1)
	}
	card := NewBatchCommittedCard(entity.BatchSummary{Count: 25, WOIDs: ids, WriterID: "GYGJ240328"})

	text := card.Elements[1].Text.Content
	assert.Contains(t, text, "UW25030110 等25条")
	assert.NotContains(t, text, "UW25030111")
	assert.Contains(t, card.Elements[0].Fields[1].Text.Content, "GYGJ240328")
}
