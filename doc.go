// Package users is a small user administration module: CRUD and role
// assignment over a bun backed store, admin impersonation, and a JSON API
// authenticated with an email and token pair.
//
// Identity:
//   - SessionIdentity keeps two slots, the true user who signed in and the
//     optional acting user being impersonated. Authorization always looks at
//     the effective user, and so do audit records. Impersonation events also
//     carry the true user's email.
//   - Only IdentityManager can set the acting slot. Impersonation lives in
//     the signed session cookie, so requests authenticated by token can never
//     impersonate.
//
// Authorization:
//   - Policy.Can is a pure function of principal, action and resource.
//     BrowserPolicy never allows destroy; APIPolicy lets admins destroy.
//
// Activity sinks:
//   - Recorder queues audit events and forwards them to an ActivitySink on a
//     single worker. Sinks run best effort: failures are logged and never
//     reach the caller, and a full queue drops the event. The analytics
//     package provides log, Redis stream and Prometheus sinks.
//
// Wiring:
//
//	module := users.NewModule(cfg, users.NewRepositoryManager(db),
//		users.WithModuleActivitySink(sink),
//	)
//	defer module.Close()
//	srv := module.NewServer()
//	srv.Serve(":8978")
package users
