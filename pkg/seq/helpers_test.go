package seq_test

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fivetwenty-io/seq/pkg/seq"
)

// fakeResponse is one scripted reply: a JSON body or an error.
type fakeResponse struct {
	body string
	err  error
}

// fakeClient replays scripted responses in order and records every call.
type fakeClient struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     []seq.Call
}

func newFakeClient(responses ...fakeResponse) *fakeClient {
	return &fakeClient{responses: responses}
}

func reply(body string) fakeResponse {
	return fakeResponse{body: body}
}

func failure(err error) fakeResponse {
	return fakeResponse{err: err}
}

func (f *fakeClient) Invoke(ctx context.Context, call *seq.Call, result interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, *call)

	if len(f.responses) == 0 {
		return seq.NewHTTPError(500, nil, "")
	}

	next := f.responses[0]
	f.responses = f.responses[1:]

	if next.err != nil {
		return next.err
	}

	if result == nil {
		return nil
	}

	return json.Unmarshal([]byte(next.body), result)
}

// payloads returns the JSON encoding of each recorded payload.
func (f *fakeClient) payloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.calls))

	for _, call := range f.calls {
		data, err := json.Marshal(call.Payload)
		if err != nil {
			panic(err)
		}

		out = append(out, string(data))
	}

	return out
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}
