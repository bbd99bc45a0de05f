// Package dashboard partitions SmartCache into the domain caches of the evaluation
// dashboard and coordinates invalidation and warming across them.
//
// Caches bundles five caches, each behind a thin typed service:
//
//	employees    employee:{id}, employee:list:{filter}
//	quarters     quarter:{id}, quarter:list, quarter:current
//	evaluations  evaluation:{employee}:{quarter}, evaluation:employee:{employee}, evaluation:quarter:{quarter}
//	coregroups   coregroup:{group}:{quarter}, coregroup:members:{group}
//	charts       chart:{kind}:{employee}:{quarter}, chart:trend:{employee}, chart:distribution:{quarter}
//
// Services hold no state of their own; every read goes through GetOrFetch with a
// caller-supplied producer, so concurrent misses for one key hit upstream once.
//
// Invalidator maps a changed entity to id-anchored patterns over every cache whose
// keys can mention it. Preloader warms likely-next entries in the background.
package dashboard
