// Package storage publishes pipeline artifacts and fetches remote documents.
//
// Two drivers implement Store: Azure Blob Storage, which returns read-only SAS
// URLs, and a local directory whose files are served by the daemon under
// /api/videos/. Object names follow the files/, audio/ and videos/ layout
// shared by every driver.
package storage
