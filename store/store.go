// Package store 提供 core.Store / core.KeyValueStore 的实现，以及基于它们的数据快照读写。
//
// 接口定义在 core 包：
//
//	var kv core.KeyValueStore = store.NewMemoryStore()
//	snapshots := store.NewSnapshotStore(kv, "prodrec:snapshot")
//	files := store.NewFileSource("data/sample.json")
package store
