// Package yearbook manages the lifecycle of paginated visual documents:
// ingesting page images individually or extracted from a multi-page
// source, staging edits as drafts, publishing or discarding those drafts
// atomically, and serving pages back under a tiered access-control and
// content-protection policy.
//
// The package orchestrates two external services behind interfaces: a
// relational metadata store (Repository) that is the single source of
// truth, and a binary object store (ObjectStore) holding the page assets.
// Implementations live under repo/ and store/ respectively.
package yearbook
