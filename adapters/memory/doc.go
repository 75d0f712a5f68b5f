// Package memory provides in-memory implementations of every notify
// repository. They are safe for concurrent use and honor the same
// compare-and-set semantics as the relational adapters, which makes them
// suitable for tests, examples and single-process deployments.
//
// Example:
//
//	repos := memory.NewRepositories()
//	repos.Legislation.AddBill(model.Bill{ID: "ocd-bill/1", Slug: "o2024-1"})
//
//	manager, _ := notify.NewSubscriptionManager(
//	    notify.WithSubscriptionManagerRepositories(repos.Subscription, repos.Legislation, repos.Subscription),
//	    notify.WithSubscriptionManagerLogger(logger),
//	)
package memory
