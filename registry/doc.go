/*
Package registry implements a verifiable service registry with a signed,
hash-chained audit log.

Parties register a named service once; from then on the service's owner
periodically commits batches of externally-signed activity records. Every
commit presents the previously stored root hash and replaces it with a new
one, so the sequence of accepted roots forms a chain that can be audited
end to end. A commit is accepted only if the caller owns the service, the
claimed previous root matches the stored head, and every entry in the
batch carries a valid signature and a timestamp no older than the head's
last update.

On acceptance the service's heat is overwritten with the batch size and a
reward proportional to it is requested from the external token ledger.
All durable mutations of a command are applied in a single atomic write -
a failed validation leaves both stores untouched.

The registry executes as a sequence of externally-ordered commands and
holds no locks of its own; the previous-root check doubles as the defense
against stale concurrent writers.
*/
package registry
