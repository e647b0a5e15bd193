// Package remote contains the Remote Gateway bounded context.
// This context models the paginated search protocol of the remote storefront
// API and the engine's durable progress marker into it.
//
// Key concepts:
//   - SearchCriteria: filter groups (ANDed) of filters (ORed) plus pagination
//   - Gateway: Port for count-only and paginated fetches and the stock push
//   - PaginationCursor: persisted next-page marker per (instance, collection)
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package remote
