// Package ledgertest provides an in-memory ledger API server for tests.
//
// The server speaks the same JSON-over-POST protocol as the real service:
// list operations honor filters, filter parameters, page sizes and opaque
// cursors, create operations honor idempotency keys, and failures can be
// injected per request to exercise retry behavior.
package ledgertest

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fivetwenty-io/seq/internal/constants"
	"github.com/fivetwenty-io/seq/pkg/seq"
	"github.com/google/uuid"
)

// Failure describes an injected failure for one request.
type Failure struct {
	// Status is the HTTP status to return. Ignored when Drop is set.
	Status int
	// Code and Message populate the error body.
	Code    string
	Message string
	// Retryable, when set, is sent as the body's retryable flag.
	Retryable *bool
	// Drop closes the connection without a response.
	Drop bool
	// After applies the failure after the operation has taken effect, as
	// when a response is lost in transit.
	After bool
}

// RecordedRequest is a request the server received.
type RecordedRequest struct {
	Operation      string
	Body           json.RawMessage
	Headers        http.Header
	IdempotencyKey string
}

// Server is an in-memory ledger.
type Server struct {
	*httptest.Server

	// Ledger is the ledger name served.
	Ledger string
	// Credential, when set, is required as the Bearer token.
	Credential string

	mu           sync.Mutex
	accounts     []seq.Account
	flavors      []seq.Flavor
	keys         []seq.Key
	tokens       []seq.Token
	actions      []seq.Action
	transactions []seq.Transaction
	failures     map[string][]Failure
	requests     []RecordedRequest
	idempotent   map[string][]byte
	sequence     int64
}

// NewServer starts a server for ledger. Call Close when done.
func NewServer(ledger string) *Server {
	s := &Server{
		Ledger:     ledger,
		failures:   make(map[string][]Failure),
		idempotent: make(map[string][]byte),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))

	return s
}

// FailNext queues failures for the next calls to operation. An empty
// operation matches any call.
func (s *Server) FailNext(operation string, failures ...Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[operation] = append(s.failures[operation], failures...)
}

// Requests returns the requests received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)

	return out
}

// Count returns how many requests were received for operation.
func (s *Server) Count(operation string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0

	for _, req := range s.requests {
		if req.Operation == operation {
			count++
		}
	}

	return count
}

// AddAccounts seeds accounts directly.
func (s *Server) AddAccounts(accounts ...seq.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = append(s.accounts, accounts...)
}

// AddFlavors seeds flavors directly.
func (s *Server) AddFlavors(flavors ...seq.Flavor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flavors = append(s.flavors, flavors...)
}

// AddKeys seeds keys directly.
func (s *Server) AddKeys(keys ...seq.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys = append(s.keys, keys...)
}

// Accounts returns a snapshot of the stored accounts.
func (s *Server) Accounts() []seq.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]seq.Account, len(s.accounts))
	copy(out, s.accounts)

	return out
}

// Tokens returns a snapshot of the token balances.
func (s *Server) Tokens() []seq.Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]seq.Token, len(s.tokens))
	copy(out, s.tokens)

	return out
}

type apiError struct {
	status    int
	code      string
	message   string
	retryable *bool
}

func (e *apiError) Error() string { return e.code + ": " + e.message }

func badRequest(code, format string, args ...interface{}) *apiError {
	return &apiError{status: http.StatusBadRequest, code: code, message: fmt.Sprintf(format, args...)}
}

func (s *Server) handle(writer http.ResponseWriter, request *http.Request) {
	requestID := uuid.NewString()
	writer.Header().Set(constants.HeaderRequestID, requestID)

	parts := strings.Split(strings.Trim(request.URL.Path, "/"), "/")
	if request.Method != http.MethodPost || len(parts) != 2 {
		writeError(writer, requestID, &apiError{status: http.StatusNotFound, code: "SEQ001", message: "unknown endpoint"})

		return
	}

	ledger, operation := parts[0], parts[1]

	var body json.RawMessage

	err := json.NewDecoder(request.Body).Decode(&body)
	if err != nil {
		writeError(writer, requestID, badRequest("SEQ003", "malformed request body: %v", err))

		return
	}

	failure, found := s.record(operation, body, request.Header)
	if found && !failure.After {
		s.fail(writer, requestID, failure)

		return
	}

	if s.Credential != "" && request.Header.Get(constants.HeaderAuthorization) != "Bearer "+s.Credential {
		writeError(writer, requestID, &apiError{status: http.StatusUnauthorized, code: "SEQ010", message: "invalid credential"})

		return
	}

	if ledger != s.Ledger {
		writeError(writer, requestID, &apiError{status: http.StatusNotFound, code: "SEQ002", message: "ledger not found"})

		return
	}

	result, err := s.dispatch(operation, body, request.Header.Get(constants.HeaderIdempotencyKey))

	if found {
		s.fail(writer, requestID, failure)

		return
	}

	if err != nil {
		var apiErr *apiError
		if !errors.As(err, &apiErr) {
			apiErr = &apiError{status: http.StatusInternalServerError, code: "SEQ000", message: err.Error()}
		}

		writeError(writer, requestID, apiErr)

		return
	}

	writer.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	_, _ = writer.Write(result)
}

func (s *Server) record(operation string, body json.RawMessage, headers http.Header) (Failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, RecordedRequest{
		Operation:      operation,
		Body:           body,
		Headers:        headers.Clone(),
		IdempotencyKey: headers.Get(constants.HeaderIdempotencyKey),
	})

	for _, key := range []string{operation, ""} {
		queue := s.failures[key]
		if len(queue) > 0 {
			s.failures[key] = queue[1:]

			return queue[0], true
		}
	}

	return Failure{}, false
}

func (s *Server) fail(writer http.ResponseWriter, requestID string, failure Failure) {
	if failure.Drop {
		hijacker, ok := writer.(http.Hijacker)
		if ok {
			conn, _, err := hijacker.Hijack()
			if err == nil {
				_ = conn.Close()

				return
			}
		}
	}

	status := failure.Status
	if status == 0 {
		status = http.StatusServiceUnavailable
	}

	code := failure.Code
	if code == "" {
		code = fmt.Sprintf("SEQ%d", status)
	}

	writeError(writer, requestID, &apiError{
		status:    status,
		code:      code,
		message:   failure.Message,
		retryable: failure.Retryable,
	})
}

func writeError(writer http.ResponseWriter, requestID string, apiErr *apiError) {
	writer.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	writer.WriteHeader(apiErr.status)

	body := map[string]interface{}{
		"code":       apiErr.code,
		"message":    apiErr.message,
		"request_id": requestID,
	}
	if apiErr.retryable != nil {
		body["retryable"] = *apiErr.retryable
	}

	_ = json.NewEncoder(writer).Encode(body)
}

func (s *Server) dispatch(operation string, body json.RawMessage, idempotencyKey string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idempotencyKey != "" {
		if cached, ok := s.idempotent[operation+"/"+idempotencyKey]; ok {
			return cached, nil
		}
	}

	result, err := s.apply(operation, body)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}

	if idempotencyKey != "" {
		s.idempotent[operation+"/"+idempotencyKey] = encoded
	}

	return encoded, nil
}

//nolint:cyclop // one case per operation
func (s *Server) apply(operation string, body json.RawMessage) (interface{}, error) {
	switch operation {
	case "list-accounts":
		return list(body, s.accounts)
	case "list-flavors":
		return list(body, s.flavors)
	case "list-keys":
		return list(body, s.keys)
	case "list-tokens":
		return list(body, s.tokens)
	case "list-actions":
		return list(body, s.actions)
	case "list-transactions":
		return list(body, s.transactions)
	case "create-account":
		return s.createAccount(body)
	case "create-flavor":
		return s.createFlavor(body)
	case "create-key":
		return s.createKey(body)
	case "transact":
		return s.transact(body)
	case "update-account-tags":
		return s.updateTags(body, func(id string, tags map[string]interface{}) bool {
			for i := range s.accounts {
				if s.accounts[i].ID == id {
					s.accounts[i].Tags = tags

					return true
				}
			}

			return false
		})
	case "update-flavor-tags":
		return s.updateTags(body, func(id string, tags map[string]interface{}) bool {
			for i := range s.flavors {
				if s.flavors[i].ID == id {
					s.flavors[i].Tags = tags

					return true
				}
			}

			return false
		})
	case "update-action-tags":
		return s.updateTags(body, func(id string, tags map[string]interface{}) bool {
			for i := range s.actions {
				if s.actions[i].ID == id {
					s.actions[i].Tags = tags

					return true
				}
			}

			return false
		})
	default:
		return nil, &apiError{status: http.StatusNotFound, code: "SEQ001", message: "unknown operation " + operation}
	}
}

type listRequest struct {
	Filter       string        `json:"filter"`
	FilterParams []interface{} `json:"filter_params"`
	Cursor       string        `json:"cursor"`
	PageSize     int           `json:"page_size"`
}

type cursorState struct {
	Filter       string        `json:"f,omitempty"`
	FilterParams []interface{} `json:"p,omitempty"`
	PageSize     int           `json:"s"`
	Offset       int           `json:"o"`
}

func encodeCursor(state cursorState) string {
	data, _ := json.Marshal(state)

	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeCursor(cursor string) (cursorState, error) {
	var state cursorState

	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return state, badRequest("SEQ301", "invalid cursor")
	}

	err = json.Unmarshal(data, &state)
	if err != nil {
		return state, badRequest("SEQ301", "invalid cursor")
	}

	return state, nil
}

func list[T any](body json.RawMessage, items []T) (*seq.Page[T], error) {
	var req listRequest

	err := json.Unmarshal(body, &req)
	if err != nil {
		return nil, badRequest("SEQ003", "malformed list request")
	}

	state := cursorState{Filter: req.Filter, FilterParams: req.FilterParams, PageSize: req.PageSize}
	if req.Cursor != "" {
		state, err = decodeCursor(req.Cursor)
		if err != nil {
			return nil, err
		}
	}

	if state.PageSize <= 0 {
		state.PageSize = constants.StandardPageSize
	}

	if state.PageSize > constants.MaxPageSize {
		state.PageSize = constants.MaxPageSize
	}

	parsed, err := parseFilter(state.Filter, state.FilterParams)
	if err != nil {
		return nil, badRequest("SEQ202", "%v", err)
	}

	var matched []T

	for _, item := range items {
		if parsed.matches(item) {
			matched = append(matched, item)
		}
	}

	start := min(state.Offset, len(matched))
	end := min(start+state.PageSize, len(matched))

	page := &seq.Page[T]{Items: matched[start:end], LastPage: end >= len(matched)}
	if page.Items == nil {
		page.Items = []T{}
	}

	// The last page's cursor resumes to an empty last page.
	next := state
	next.Offset = end
	page.Cursor = encodeCursor(next)

	return page, nil
}

type createRequest struct {
	ID     string                 `json:"id"`
	KeyIDs []string               `json:"key_ids"`
	Quorum *int                   `json:"quorum"`
	Tags   map[string]interface{} `json:"tags"`
}

func (r *createRequest) quorum() int {
	if r.Quorum != nil {
		return *r.Quorum
	}

	return len(r.KeyIDs)
}

func conflict(kind, id string) *apiError {
	return &apiError{status: http.StatusConflict, code: "SEQ050", message: kind + " " + id + " already exists"}
}

func (s *Server) createAccount(body json.RawMessage) (*seq.Account, error) {
	var req createRequest

	err := json.Unmarshal(body, &req)
	if err != nil {
		return nil, badRequest("SEQ003", "malformed account")
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	for _, existing := range s.accounts {
		if existing.ID == req.ID {
			return nil, conflict("account", req.ID)
		}
	}

	if len(req.KeyIDs) == 0 {
		return nil, badRequest("SEQ100", "at least one key is required")
	}

	account := seq.Account{ID: req.ID, KeyIDs: req.KeyIDs, Quorum: req.quorum(), Tags: req.Tags}
	s.accounts = append(s.accounts, account)

	return &account, nil
}

func (s *Server) createFlavor(body json.RawMessage) (*seq.Flavor, error) {
	var req createRequest

	err := json.Unmarshal(body, &req)
	if err != nil {
		return nil, badRequest("SEQ003", "malformed flavor")
	}

	if req.ID == "" {
		return nil, badRequest("SEQ100", "flavor id is required")
	}

	for _, existing := range s.flavors {
		if existing.ID == req.ID {
			return nil, conflict("flavor", req.ID)
		}
	}

	if len(req.KeyIDs) == 0 {
		return nil, badRequest("SEQ100", "at least one key is required")
	}

	flavor := seq.Flavor{ID: req.ID, KeyIDs: req.KeyIDs, Quorum: req.quorum(), Tags: req.Tags}
	s.flavors = append(s.flavors, flavor)

	return &flavor, nil
}

func (s *Server) createKey(body json.RawMessage) (*seq.Key, error) {
	var req createRequest

	err := json.Unmarshal(body, &req)
	if err != nil {
		return nil, badRequest("SEQ003", "malformed key")
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	for _, existing := range s.keys {
		if existing.ID == req.ID {
			return nil, conflict("key", req.ID)
		}
	}

	key := seq.Key{ID: req.ID, Tags: req.Tags}
	s.keys = append(s.keys, key)

	return &key, nil
}

type tagsRequest struct {
	ID   string                 `json:"id"`
	Tags map[string]interface{} `json:"tags"`
}

func (s *Server) updateTags(body json.RawMessage, apply func(string, map[string]interface{}) bool) (*seq.SuccessMessage, error) {
	var req tagsRequest

	err := json.Unmarshal(body, &req)
	if err != nil {
		return nil, badRequest("SEQ003", "malformed tag update")
	}

	if req.ID == "" {
		return nil, badRequest("SEQ100", "id is required")
	}

	if !apply(req.ID, req.Tags) {
		return nil, &apiError{status: http.StatusNotFound, code: "SEQ404", message: req.ID + " not found"}
	}

	return &seq.SuccessMessage{Message: "ok"}, nil
}

type actionRequest struct {
	Type                 string                 `json:"type"`
	FlavorID             string                 `json:"flavor_id"`
	Amount               int64                  `json:"amount"`
	SourceAccountID      string                 `json:"source_account_id"`
	DestinationAccountID string                 `json:"destination_account_id"`
	Filter               string                 `json:"filter"`
	FilterParams         []interface{}          `json:"filter_params"`
	TokenTags            map[string]interface{} `json:"token_tags"`
	ActionTags           map[string]interface{} `json:"action_tags"`
}

type transactRequest struct {
	Actions         []actionRequest        `json:"actions"`
	TransactionTags map[string]interface{} `json:"transaction_tags"`
}

func (s *Server) findAccount(id string) *seq.Account {
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			return &s.accounts[i]
		}
	}

	return nil
}

func (s *Server) findFlavor(id string) *seq.Flavor {
	for i := range s.flavors {
		if s.flavors[i].ID == id {
			return &s.flavors[i]
		}
	}

	return nil
}

func unprocessable(code, format string, args ...interface{}) *apiError {
	return &apiError{status: http.StatusUnprocessableEntity, code: code, message: fmt.Sprintf(format, args...)}
}

// transact applies all actions atomically against a copy of the balances.
func (s *Server) transact(body json.RawMessage) (*seq.Transaction, error) {
	var req transactRequest

	err := json.Unmarshal(body, &req)
	if err != nil {
		return nil, badRequest("SEQ003", "malformed transaction")
	}

	if len(req.Actions) == 0 {
		return nil, badRequest("SEQ100", "transaction has no actions")
	}

	tokens := make([]seq.Token, len(s.tokens))
	copy(tokens, s.tokens)

	txID := uuid.NewString()
	now := time.Now().UTC()
	actions := make([]seq.Action, 0, len(req.Actions))

	for _, action := range req.Actions {
		if action.Amount <= 0 {
			return nil, badRequest("SEQ100", "amount must be positive")
		}

		flavor := s.findFlavor(action.FlavorID)
		if flavor == nil {
			return nil, unprocessable("SEQ700", "flavor %s not found", action.FlavorID)
		}

		var spent []seq.Token

		switch action.Type {
		case seq.ActionTypeIssue:
		case seq.ActionTypeTransfer, seq.ActionTypeRetire:
			if s.findAccount(action.SourceAccountID) == nil {
				return nil, unprocessable("SEQ701", "account %s not found", action.SourceAccountID)
			}

			tokens, spent, err = spend(tokens, action)
			if err != nil {
				return nil, err
			}
		default:
			return nil, badRequest("SEQ100", "unknown action type %q", action.Type)
		}

		if action.Type != seq.ActionTypeRetire {
			destination := s.findAccount(action.DestinationAccountID)
			if destination == nil {
				return nil, unprocessable("SEQ701", "account %s not found", action.DestinationAccountID)
			}

			tokens = receive(tokens, destination, flavor, action, spent)
		}

		actions = append(actions, seq.Action{
			ID:                   uuid.NewString(),
			Type:                 action.Type,
			Timestamp:            now,
			TransactionID:        txID,
			FlavorID:             action.FlavorID,
			Amount:               action.Amount,
			SourceAccountID:      action.SourceAccountID,
			DestinationAccountID: action.DestinationAccountID,
			Tags:                 action.ActionTags,
			Snapshot: &seq.ActionSnapshot{
				FlavorTags:      flavor.Tags,
				TokenTags:       action.TokenTags,
				TransactionTags: req.TransactionTags,
			},
		})
	}

	s.sequence++
	tx := seq.Transaction{
		ID:             txID,
		Timestamp:      now,
		SequenceNumber: s.sequence,
		Actions:        actions,
		Tags:           req.TransactionTags,
	}

	s.tokens = tokens
	s.actions = append(s.actions, actions...)
	s.transactions = append(s.transactions, tx)

	return &tx, nil
}

func spend(tokens []seq.Token, action actionRequest) ([]seq.Token, []seq.Token, error) {
	parsed, err := parseFilter(action.Filter, action.FilterParams)
	if err != nil {
		return nil, nil, badRequest("SEQ202", "%v", err)
	}

	remaining := action.Amount

	var spent []seq.Token

	out := make([]seq.Token, 0, len(tokens))

	for _, token := range tokens {
		if remaining == 0 || token.AccountID != action.SourceAccountID || token.FlavorID != action.FlavorID ||
			!parsed.matches(token) {
			out = append(out, token)

			continue
		}

		take := min(token.Amount, remaining)
		remaining -= take

		used := token
		used.Amount = take
		spent = append(spent, used)

		token.Amount -= take
		if token.Amount > 0 {
			out = append(out, token)
		}
	}

	if remaining > 0 {
		return nil, nil, unprocessable("SEQ735", "insufficient balance in account %s", action.SourceAccountID)
	}

	return out, spent, nil
}

func receive(tokens []seq.Token, account *seq.Account, flavor *seq.Flavor, action actionRequest, spent []seq.Token) []seq.Token {
	add := func(amount int64, tags map[string]interface{}) {
		for i := range tokens {
			if tokens[i].AccountID == account.ID && tokens[i].FlavorID == flavor.ID && equal(tokens[i].Tags, tags) {
				tokens[i].Amount += amount

				return
			}
		}

		tokens = append(tokens, seq.Token{
			FlavorID:    flavor.ID,
			FlavorTags:  flavor.Tags,
			AccountID:   account.ID,
			AccountTags: account.Tags,
			Tags:        tags,
			Amount:      amount,
		})
	}

	if action.TokenTags != nil || len(spent) == 0 {
		add(action.Amount, action.TokenTags)
	} else {
		for _, token := range spent {
			add(token.Amount, token.Tags)
		}
	}

	sort.SliceStable(tokens, func(i, j int) bool { return tokens[i].AccountID < tokens[j].AccountID })

	return tokens
}
