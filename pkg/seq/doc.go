// Package seq provides types, builders, and helpers for working with a
// remote token ledger.
//
// # Overview
//
// The seq package defines the ledger resources (Account, Flavor, Key, Token,
// Action, Transaction), the builders that create or update them, and the
// query and pagination machinery used to list them. All network access goes
// through the Client interface; the seqclient package provides the default
// implementation, which wires configuration, transport, retries and
// authentication.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/seq/pkg/seq"
//	  "github.com/fivetwenty-io/seq/pkg/seqclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := seqclient.New(ctx, &seq.Config{
//	    APIEndpoint: "https://api.seq.com/team",
//	    Ledger:      "treasury",
//	    Credential:  "...",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  account, err := seq.NewAccount().
//	    SetID("alice").
//	    AddKeyID("key-1").
//	    AddTag("type", "checking").
//	    Create(ctx, cli)
//	  if err != nil { log.Fatal(err) }
//	  _ = account
//	}
//
// # Queries and pagination
//
// A ListBuilder describes a filtered listing. GetPage fetches one page;
// GetIterable returns an Items sequence that fetches pages on demand:
//
//	items := seq.ListAccounts().
//	  WithFilter("tags.type=$1").
//	  AddFilterParam("checking").
//	  GetIterable(cli)
//	for {
//	  account, err := items.Next(ctx)
//	  if errors.Is(err, seq.ErrNoMoreItems) { break }
//	  if err != nil { return err }
//	  _ = account
//	}
//
// A page's cursor can be stored and later passed to GetPageAt or
// GetIterableAt to resume. A continuation sends only the cursor, so the
// filter and page size of the original query stay in effect. WalkPages
// combines this with a CheckpointStore.
//
// # Errors
//
// Failed calls return *APIError classified by ErrorKind: connectivity,
// request rejected, or application. Responses that cannot be decoded return
// *DecodeError. Helpers such as IsConnectivity, IsRetryable and RequestIDOf
// branch on them. Calls that are not safe to repeat are never retried; use
// WithIdempotencyKey on a builder to make a create retry-safe.
//
// # Interceptors
//
// An InterceptorChain in Config runs once per logical call, around the
// transport's retries. The package includes logging, header, rate limiting,
// prometheus metrics and circuit breaker interceptors.
package seq
