package seqclient_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/fivetwenty-io/seq/internal/ledgertest"
	"github.com/fivetwenty-io/seq/pkg/seq"
	"github.com/fivetwenty-io/seq/pkg/seqclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T) (*ledgertest.Server, seq.Client) {
	t.Helper()

	server := ledgertest.NewServer("treasury")
	t.Cleanup(server.Close)

	client, err := seqclient.New(context.Background(), &seq.Config{
		APIEndpoint:  server.URL,
		Ledger:       "treasury",
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	return server, client
}

func seedVIPs(server *ledgertest.Server) {
	for i := 1; i <= 5; i++ {
		server.AddAccounts(seq.Account{
			ID:     fmt.Sprintf("vip-%d", i),
			KeyIDs: []string{"k1"},
			Quorum: 1,
			Tags:   map[string]interface{}{"type": "vip"},
		})
	}

	server.AddAccounts(seq.Account{
		ID:     "regular",
		KeyIDs: []string{"k1"},
		Quorum: 1,
		Tags:   map[string]interface{}{"type": "regular"},
	})
}

func vipAccounts() *seq.ListBuilder[seq.Account] {
	return seq.ListAccounts().WithFilter("tags.type=$1").AddFilterParam("vip").WithPageSize(2)
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("creates client with config", func(t *testing.T) {
		t.Parallel()

		client, err := seqclient.New(context.Background(), &seq.Config{
			APIEndpoint: "api.seq.com/team/",
			Ledger:      "treasury",
		})
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("requires config", func(t *testing.T) {
		t.Parallel()

		_, err := seqclient.New(context.Background(), nil)
		require.ErrorIs(t, err, seq.ErrConfigRequired)
	})

	t.Run("requires ledger", func(t *testing.T) {
		t.Parallel()

		_, err := seqclient.New(context.Background(), &seq.Config{APIEndpoint: "https://api.seq.com"})
		require.ErrorIs(t, err, seq.ErrLedgerRequired)
	})

	t.Run("does not modify caller config", func(t *testing.T) {
		t.Parallel()

		config := &seq.Config{APIEndpoint: "api.seq.com/", Ledger: "treasury"}

		_, err := seqclient.New(context.Background(), config)
		require.NoError(t, err)
		assert.Equal(t, "api.seq.com/", config.APIEndpoint)
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://api.seq.com/team", seqclient.NormalizeEndpoint("api.seq.com/team/"))
	assert.Equal(t, "http://localhost:8080", seqclient.NormalizeEndpoint("http://localhost:8080"))
	assert.Equal(t, "https://api.seq.com", seqclient.NormalizeEndpoint(" https://api.seq.com "))
}

func TestNewWithCredential(t *testing.T) {
	t.Parallel()

	server := ledgertest.NewServer("treasury")
	defer server.Close()

	server.Credential = "secret"

	client, err := seqclient.NewWithCredential(context.Background(), server.URL, "treasury", "secret")
	require.NoError(t, err)

	_, err = seq.ListKeys().GetPage(context.Background(), client)
	require.NoError(t, err)

	bad, err := seqclient.NewWithCredential(context.Background(), server.URL, "treasury", "wrong")
	require.NoError(t, err)

	_, err = seq.ListKeys().GetPage(context.Background(), bad)
	require.Error(t, err)
	assert.True(t, seq.IsRequestRejected(err))
}

//nolint:paralleltest // modifies process environment
func TestNewFromEnv(t *testing.T) {
	server := ledgertest.NewServer("env-ledger")
	defer server.Close()

	t.Setenv(seqclient.EnvAPIEndpoint, server.URL)
	t.Setenv(seqclient.EnvLedger, "env-ledger")
	t.Setenv(seqclient.EnvCredential, "")

	client, err := seqclient.NewFromEnv(context.Background())
	require.NoError(t, err)

	_, err = seq.ListAccounts().GetPage(context.Background(), client)
	require.NoError(t, err)
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestPagination(t *testing.T) {
	t.Parallel()

	t.Run("filtered pages of two", func(t *testing.T) {
		t.Parallel()

		server, client := newLedger(t)
		seedVIPs(server)

		ctx := context.Background()
		builder := vipAccounts()

		var sizes []int

		var flags []bool

		page, err := builder.GetPage(ctx, client)
		require.NoError(t, err)

		for {
			sizes = append(sizes, page.Len())
			flags = append(flags, page.LastPage)

			if page.LastPage {
				break
			}

			page, err = builder.GetPageAt(ctx, client, page.Cursor)
			require.NoError(t, err)
		}

		assert.Equal(t, []int{2, 2, 1}, sizes)
		assert.Equal(t, []bool{false, false, true}, flags)
	})

	t.Run("sequence yields all items in server order", func(t *testing.T) {
		t.Parallel()

		server, client := newLedger(t)
		seedVIPs(server)

		items := vipAccounts().GetIterable(client)

		accounts, err := items.All(context.Background())
		require.NoError(t, err)

		ids := make([]string, 0, len(accounts))
		for _, account := range accounts {
			ids = append(ids, account.ID)
		}

		assert.Equal(t, []string{"vip-1", "vip-2", "vip-3", "vip-4", "vip-5"}, ids)
		assert.Equal(t, 3, items.PagesFetched())
		assert.Equal(t, 3, server.Count("list-accounts"))

		_, err = items.Next(context.Background())
		require.ErrorIs(t, err, seq.ErrNoMoreItems)
		assert.Equal(t, 3, server.Count("list-accounts"))
	})

	t.Run("continuation pages are disjoint", func(t *testing.T) {
		t.Parallel()

		server, client := newLedger(t)
		seedVIPs(server)

		ctx := context.Background()

		first, err := vipAccounts().GetPage(ctx, client)
		require.NoError(t, err)

		second, err := seq.ListAccounts().GetPageAt(ctx, client, first.Cursor)
		require.NoError(t, err)

		assert.Equal(t, "vip-3", second.Items[0].ID)
		assert.Equal(t, "vip-4", second.Items[1].ID)
	})

	t.Run("continuation sends only the cursor", func(t *testing.T) {
		t.Parallel()

		server, client := newLedger(t)
		seedVIPs(server)

		ctx := context.Background()

		first, err := vipAccounts().GetPage(ctx, client)
		require.NoError(t, err)

		_, err = vipAccounts().WithFilter("id=$1").GetPageAt(ctx, client, first.Cursor)
		require.NoError(t, err)

		requests := server.Requests()
		assert.JSONEq(t, fmt.Sprintf(`{"cursor":%q}`, first.Cursor), string(requests[1].Body))
	})

	t.Run("last page cursor restarts an empty continuation", func(t *testing.T) {
		t.Parallel()

		server, client := newLedger(t)
		seedVIPs(server)

		ctx := context.Background()

		page, err := vipAccounts().WithPageSize(10).GetPage(ctx, client)
		require.NoError(t, err)
		require.True(t, page.LastPage)
		require.NotEmpty(t, page.Cursor)

		again, err := seq.ListAccounts().GetPageAt(ctx, client, page.Cursor)
		require.NoError(t, err)
		assert.Empty(t, again.Items)
		assert.True(t, again.LastPage)
	})

	t.Run("resume from saved cursor", func(t *testing.T) {
		t.Parallel()

		server, client := newLedger(t)
		seedVIPs(server)

		ctx := context.Background()
		items := vipAccounts().GetIterable(client)

		for range 2 {
			_, err := items.Next(ctx)
			require.NoError(t, err)
		}

		saved := items.Cursor()

		resumed, err := seq.ListAccounts().GetIterableAt(client, saved).All(ctx)
		require.NoError(t, err)
		require.Len(t, resumed, 3)
		assert.Equal(t, "vip-3", resumed[0].ID)
	})

	t.Run("invalid filter is rejected", func(t *testing.T) {
		t.Parallel()

		_, client := newLedger(t)

		_, err := seq.ListAccounts().WithFilter("tags.type=$2").AddFilterParam("vip").
			GetPage(context.Background(), client)
		require.Error(t, err)
		assert.True(t, seq.IsRequestRejected(err))
		assert.NotEmpty(t, seq.RequestIDOf(err))
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestRetries(t *testing.T) {
	t.Parallel()

	t.Run("connectivity failures on list are retried", func(t *testing.T) {
		t.Parallel()

		server, client := newLedger(t)
		seedVIPs(server)
		server.FailNext("list-accounts", ledgertest.Failure{Drop: true}, ledgertest.Failure{Drop: true})

		page, err := vipAccounts().GetPage(context.Background(), client)
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, 3, server.Count("list-accounts"))
	})

	t.Run("malformed create is not retried", func(t *testing.T) {
		t.Parallel()

		server, client := newLedger(t)

		_, err := seq.NewFlavor().AddKeyID("k1").WithIdempotencyKey(seq.NewIdempotencyKey()).
			Create(context.Background(), client)
		require.Error(t, err)
		assert.True(t, seq.IsRequestRejected(err))
		assert.Equal(t, 1, server.Count("create-flavor"))
	})

	t.Run("create without key is not retried", func(t *testing.T) {
		t.Parallel()

		server, client := newLedger(t)
		server.FailNext("create-account", ledgertest.Failure{Status: http.StatusServiceUnavailable})

		_, err := seq.NewAccount().AddKeyID("k1").Create(context.Background(), client)
		require.Error(t, err)
		assert.True(t, seq.IsConnectivity(err))
		assert.Equal(t, 1, server.Count("create-account"))
	})

	t.Run("create with key survives a lost response", func(t *testing.T) {
		t.Parallel()

		server, client := newLedger(t)
		server.FailNext("create-account", ledgertest.Failure{Status: http.StatusServiceUnavailable, After: true})

		account, err := seq.NewAccount().SetID("alice").AddKeyID("k1").
			WithIdempotencyKey("create-alice").
			Create(context.Background(), client)
		require.NoError(t, err)
		assert.Equal(t, "alice", account.ID)
		assert.Equal(t, 2, server.Count("create-account"))
		assert.Len(t, server.Accounts(), 1)
	})

	t.Run("application errors are not retried", func(t *testing.T) {
		t.Parallel()

		server, client := newLedger(t)
		server.AddAccounts(seq.Account{ID: "alice", KeyIDs: []string{"k1"}, Quorum: 1})

		_, err := seq.NewAccount().SetID("alice").AddKeyID("k1").
			WithIdempotencyKey(seq.NewIdempotencyKey()).
			Create(context.Background(), client)
		require.Error(t, err)
		assert.True(t, seq.IsApplication(err))
		assert.False(t, seq.IsRetryable(err))
		assert.Equal(t, 1, server.Count("create-account"))
	})

	t.Run("exhausted retries surface service unavailable", func(t *testing.T) {
		t.Parallel()

		server, client := newLedger(t)
		for range 4 {
			server.FailNext("list-keys", ledgertest.Failure{Status: http.StatusBadGateway})
		}

		_, err := seq.ListKeys().GetPage(context.Background(), client)
		require.ErrorIs(t, err, seq.ErrServiceUnavailable)
		assert.Equal(t, 4, server.Count("list-keys"))
	})

	t.Run("fetch failure latches the sequence", func(t *testing.T) {
		t.Parallel()

		server, client := newLedger(t)
		seedVIPs(server)

		items := vipAccounts().GetIterable(client)
		ctx := context.Background()

		for range 2 {
			_, err := items.Next(ctx)
			require.NoError(t, err)
		}

		server.FailNext("list-accounts", ledgertest.Failure{Status: http.StatusBadRequest, Code: "SEQ301"})

		_, err := items.Next(ctx)
		require.Error(t, err)

		apiErr := &seq.APIError{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "SEQ301", apiErr.Code)

		_, again := items.Next(ctx)
		assert.Equal(t, err, again)
		assert.Equal(t, 2, server.Count("list-accounts"))
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestLedgerOperations(t *testing.T) {
	t.Parallel()

	t.Run("update tags twice", func(t *testing.T) {
		t.Parallel()

		server, client := newLedger(t)
		server.AddAccounts(seq.Account{ID: "alice", KeyIDs: []string{"k1"}, Quorum: 1})

		update := seq.UpdateAccountTags().ForID("alice").SetTags(map[string]interface{}{"tier": "gold"})

		require.NoError(t, update.Update(context.Background(), client))
		require.NoError(t, update.Update(context.Background(), client))

		accounts := server.Accounts()
		assert.Equal(t, map[string]interface{}{"tier": "gold"}, accounts[0].Tags)
	})

	t.Run("update unknown id", func(t *testing.T) {
		t.Parallel()

		_, client := newLedger(t)

		err := seq.UpdateFlavorTags().ForID("missing").Update(context.Background(), client)
		require.Error(t, err)
		assert.True(t, seq.IsNotFound(err))
	})

	t.Run("issue transfer retire", func(t *testing.T) {
		t.Parallel()

		_, client := newLedger(t)
		ctx := context.Background()

		_, err := seq.NewKey().SetID("k1").Create(ctx, client)
		require.NoError(t, err)

		for _, id := range []string{"alice", "bob"} {
			_, err = seq.NewAccount().SetID(id).AddKeyID("k1").Create(ctx, client)
			require.NoError(t, err)
		}

		_, err = seq.NewFlavor().SetID("usd").AddKeyID("k1").Create(ctx, client)
		require.NoError(t, err)

		tx, err := seq.NewTransaction().
			Issue(seq.Issue{FlavorID: "usd", Amount: 100, DestinationAccountID: "alice"}).
			AddTransactionTag("memo", "opening").
			Transact(ctx, client)
		require.NoError(t, err)
		require.Len(t, tx.Actions, 1)
		assert.Equal(t, seq.ActionTypeIssue, tx.Actions[0].Type)

		_, err = seq.NewTransaction().
			Transfer(seq.Transfer{FlavorID: "usd", Amount: 30, SourceAccountID: "alice", DestinationAccountID: "bob"}).
			Retire(seq.Retire{FlavorID: "usd", Amount: 10, SourceAccountID: "alice"}).
			WithIdempotencyKey(seq.NewIdempotencyKey()).
			Transact(ctx, client)
		require.NoError(t, err)

		balances := map[string]int64{}

		err = seq.ListTokens().GetIterable(client).ForEach(ctx, func(token seq.Token) error {
			balances[token.AccountID] += token.Amount

			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"alice": 60, "bob": 30}, balances)

		actions, err := seq.ListActions().WithFilter("type=$1").AddFilterParam("transfer").
			GetIterable(client).All(ctx)
		require.NoError(t, err)
		require.Len(t, actions, 1)
		assert.Equal(t, "bob", actions[0].DestinationAccountID)

		transactions, err := seq.ListTransactions().GetIterable(client).All(ctx)
		require.NoError(t, err)
		assert.Len(t, transactions, 2)
	})

	t.Run("overspend is an application error", func(t *testing.T) {
		t.Parallel()

		server, client := newLedger(t)
		server.AddAccounts(seq.Account{ID: "alice", KeyIDs: []string{"k1"}, Quorum: 1})
		server.AddFlavors(seq.Flavor{ID: "usd", KeyIDs: []string{"k1"}, Quorum: 1})

		_, err := seq.NewTransaction().
			Retire(seq.Retire{FlavorID: "usd", Amount: 5, SourceAccountID: "alice"}).
			Transact(context.Background(), client)
		require.Error(t, err)
		assert.True(t, seq.IsApplication(err))
	})
}
