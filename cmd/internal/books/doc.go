// Package books is the book catalogue: the mutation service and its stores.
//
// Every write runs inside one store transaction that is committed or rolled
// back before the service method returns. Title uniqueness is pre-checked
// inside the transaction for a fast answer, but the store's unique
// constraint decides races; a late violation surfaces as the same
// DuplicateResource error.
package books
