// Package notify emails users a digest of what changed in a civic legislative
// database since they were last notified.
//
// Users follow bills, people, committees (their actions or their events),
// saved full-text searches, or all upcoming events. A digest run walks every
// subscribed user, asks one Finder per subscription kind for updates beyond
// the subscription's watermark, and hands a non-empty digest to the delivery
// queue. A background DeliveryWorker renders and sends queued digests with
// exponential backoff and a Dead Letter Queue.
//
// # Features
//
//   - Six subscription kinds with per-subscription watermarks
//   - Compare-and-set watermark writes; concurrent runs never regress them
//   - Watermarks advance only after the digest was queued (over-delivery, never loss)
//   - Full-text search subscriptions backed by a Solr-style index (package search)
//   - Multipart HTML and text emails over SMTP or Brevo (package mail)
//   - Delivery retries with DLQ and operator resolve/requeue
//   - MySQL, PostgreSQL and SQLite via Relica adapters, in-memory adapters for tests
//
// # Quick Start
//
//	import (
//	    "database/sql"
//	    "github.com/coregx/notify"
//	    "github.com/coregx/notify/adapters/relica"
//	)
//
//	db, _ := sql.Open("postgres", dsn)
//	_ = notify.ApplyMigrations(ctx, db, "postgres")
//	repos := relica.NewRepositories(db, "postgres")
//
//	dispatcher, _ := notify.NewQueueDispatcher(
//	    notify.WithDispatcherRepositories(repos.Job, repos.Queue),
//	)
//	assembler, _ := notify.NewAssembler(
//	    notify.WithFinders(notify.DefaultFinders(repos.Legislation, repos.Subscription, searcher, logger)...),
//	    notify.WithDispatcher(dispatcher),
//	)
//	runner, _ := notify.NewRunner(
//	    notify.WithRunnerRepositories(repos.Subscription, repos.User),
//	    notify.WithAssembler(assembler),
//	)
//	report, err := runner.Run(ctx, notify.RunRequest{Window: 15 * time.Minute})
//
// The cmd/notify-server binary wires the same graph behind an HTTP API and
// runs the scheduler and the delivery worker.
//
// # Digest Flow
//
//  1. RUN
//     Runner → users with subscriptions (or the named ones)
//     → Assembler per user
//
//  2. ASSEMBLE
//     Finders (bill action, person, committee action, committee event,
//     bill search, events) → Findings with pending watermark writes
//     → Dispatcher.Dispatch → commit watermarks
//
//  3. DELIVER (background)
//     DeliveryWorker → pending/retryable queue items
//     → Mailer.SendDigest
//     → success: SENT; failure: retry with backoff
//     → permanent failure or retry limit: DLQ
//
// A failing finder skips only its own kind for that user. A failed dispatch
// leaves every watermark of the user untouched, so the next run reports the
// same updates again.
//
// # Database Schema
//
// ApplyMigrations (or MigrationFiles with any migration tool) creates:
//
//	notify_user, notify_subscription_profile  - accounts and activation keys
//	notify_*_subscription                     - one table per subscription kind
//	notify_seen_sponsorship, notify_seen_bill - per-subscription seen sets
//	notify_digest_job, notify_queue           - serialized digests and delivery state
//	notify_dlq, notify_notification_log       - parked deliveries and outcome log
//
// Legislative tables (bill, bill_action, person, organization, event, ...)
// belong to the host application and are only read.
package notify
