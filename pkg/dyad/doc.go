// Package dyad accelerates producer-consumer file sharing between the tasks
// of a distributed workflow by interposing on file open and close.
//
// A producer that closes a file under its managed directory has its ownership
// advertised in the shared KVS; a consumer that opens the same user path
// under its own managed directory blocks until the owner is known, fetches
// the bytes from the owner's rank unless they already share storage, writes
// them locally, and then proceeds with an ordinary open. The application sees
// plain filesystem I/O.
//
// Usage:
//
//	dyad.Init()
//	defer dyad.Finalize()
//
//	f, err := dyad.Open("/mnt/cons/data/step1.h5", os.O_RDONLY)
//	...
//	dyad.Close(f)
//
// The four entry points Open, Fopen, Close and Fclose mirror the libc calls
// they stand in for; everything else (ownership publication, wait-create lookup,
// the fetch transfer, re-entrancy control) happens inside them. Coordination
// failures are logged and swallowed: the real I/O call runs on every path,
// and a process whose transport is unavailable behaves exactly as if dyad
// were not enabled.
package dyad
