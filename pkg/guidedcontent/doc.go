// Package guidedcontent manages guided content items (audio, meditation,
// visualization, ...) whose media live in a blob store while their
// metadata live in a document store.
//
// Content kinds are data: a Registry maps each kind id to its constraints
// (blob namespace, accepted media, gender tagging, count, size and MIME
// limits). Every mutating Service call resolves the kind first and checks
// every constraint before any store is touched.
//
// Media ingestion
//
// A request delivers media in one of two shapes. A media array of
// fully formed attachments (ModeReferences) is validated and stored as
// given. Raw files plus optional genders and external video URLs
// (ModeFiles) are uploaded under collision-resistant keys, made public and
// appended as Blob attachments; external URLs become External attachments.
//
// On update, deletedIndices address positions in the stored media list.
// Retained attachments keep their order and new ones are appended after
// them. Gender values form one flat list over retained and new
// attachments, so the gender of the i-th new file is genders[retained+i].
//
// Consistency
//
// There is no transaction across the two stores. Blob deletions are best
// effort and reported through DeleteResult.FailedCleanups and the
// EventSink. Blobs uploaded by a request whose document write then fails
// are logged and left in place.
package guidedcontent
