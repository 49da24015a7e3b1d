/*
Package clientupdater is the game client's self-updater.

This is responsible for keeping an installed client tree up to date against
one of several HTTP mirrors.

Outline

A mirror hosts a plain INI manifest ("version") alongside the content tree
it describes. The updater downloads that manifest and diffs it against the
locally-installed tree and the local copy of the previous manifest, using
content hashes rather than timestamps, so a client that's missing files, has
stale files, or was hand-edited all converge onto the same plan: the set of
files whose hash differs from what the server currently publishes.

Planned files are fetched — decompressing them if the mirror serves an
LZMA-archived form — verified again, and staged under a scratch "Updater"
directory rather than written directly over the live tree, because several
of those live files may still be open (the very client the updater is
updating). Two small declarative scripts, preupdateexec and updateexec, let
a release rename, merge, or delete installation paths around the download
without needing a new updater build for every migration.

Once staging is complete, the updater hands off to a small second-stage
process (package secondstage) that takes a cross-process lock, pauses for a
second, mirrors the staged tree over the live one, and relaunches the client.
The updater itself never holds that lock, so the second stage does not
observe the host client's exit. That handoff
exists because a running Windows executable cannot overwrite itself.

Failure handling

Nothing here performs partial-apply rollback: if an update aborts partway,
the staging directory is left exactly as it was, and the next attempt reuses
any staged file (or, for an archived entry, any staged archive) that already
hashes to its manifest identifier instead of fetching it again. Mirror
failover is a flat round-robin — a manifest fetch failing on the current
mirror advances to the next one and retries, and a full pass with no
working mirror surfaces as mirror-exhausted rather than being retried
indefinitely.
*/
package clientupdater
