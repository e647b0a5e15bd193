// Package syncqueue contains the Sync Queue bounded context.
// This context manages the batch synchronization queues that buffer records
// pulled from or pushed to a remote storefront before they are processed.
//
// Key concepts:
//   - Queue: Bounded batch of up to 50 queue lines with a derived aggregate state
//   - QueueLine: One remote record's unit of work (opaque payload + processing state)
//   - LogBook: Per-queue collector of human-readable processing failures
//   - Instance: Connection/configuration object for one remote storefront account
//   - LineProcessor: Port implemented per record collection (orders, products, ...)
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package syncqueue
