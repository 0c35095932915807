// Package engine keeps linked replicas of a resource in step across
// contexts.
//
// A link group is stored redundantly: every member carries the same
// serialized LinkSet ("ns:id;ns:id") in the link slot. Any operation that
// changes a group rewrites the table of every member.
//
// Operations:
//
//   - Links, SetLinks, InitLinks, LinkedReplicas, Link, Unlink manage groups.
//   - Synchronize copies synced attributes and slots from one replica to its
//     siblings, remapping the parent through the siblings' own groups.
//   - BeforeSort/AfterSort (Capture/Apply) replay a host reorder onto the
//     linked siblings of every moved replica.
//   - Duplicate and Translate create a replica in another context.
//   - RemoveLinksToReplica and RemoveLinksToNamespace clean up after deletes.
//
// Every call is synchronous. Failures on one sibling are logged and do not
// abort the rest of the batch; writes already made are not rolled back.
// The host is expected to serialize calls that touch the same group.
package engine
