// Package qase provides a scope-based client for the Qase test-management API (v1).
//
// Usage:
//
//	client, err := qase.New(baseURL, token, qase.WithTimeout(30*time.Second), qase.WithRetry(3, time.Second))
//	cases, err := client.Project("DEMO").Cases().ListAll(ctx)
//	c, err := client.Project("DEMO").Cases().Get(ctx, 42)
//	id, err := client.Project("DEMO").Suites().Create(ctx, qase.SuitePayload{Title: "Login"})
//	hits, err := client.Project("DEMO").Cases().Search(ctx, "LOGIN-001")
//
// Store wraps one project behind the flat interface consumed by the reconciler.
package qase
