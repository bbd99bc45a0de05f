// Package repositorycache decorates go-repository-bun repositories with SmartCache
// read-through caching.
//
// Reads (Get, GetByID, GetByIdentifier, List, Count) go through the caches passed in
// Options. Keys are namespaced by the snake_case name of the record type:
//
//	employee:id:E1
//	employee:identifier:ada
//	employee:list:<criteria>
//	employee:count:<criteria>
//
// Writes pass through to the base repository. On success they drop the namespace's
// get/list/count entries, the id and identifier entries of the written records, and
// then call Options.OnChange so callers can fan the change out to derived caches:
//
//	repo := repositorycache.New(base, repositorycache.Options[Employee]{
//		Records: records,
//		Lists:   lists,
//		Counts:  counts,
//		OnChange: func(ctx context.Context, ch repositorycache.Change[Employee]) {
//			for _, e := range ch.Records {
//				invalidator.InvalidateEmployee(ctx, e.ID)
//			}
//		},
//	})
//
// Criteria based deletes cannot tell which rows went away, so they drop the whole
// namespace and report a Change with no records.
//
// Transaction variants (*Tx reads) and Raw bypass the cache. Function criteria are
// keyed by code pointer, so two closures from the same literal share a key; pass
// value criteria when captured arguments matter.
package repositorycache
