package util

import (
	"runtime"
)

// MemSnapshot is the part of runtime.MemStats logged after each run.
type MemSnapshot struct {
	HeapAllocMB uint64
	HeapSysMB   uint64
	NumGC       uint32
}

func ReadMem() MemSnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemSnapshot{
		HeapAllocMB: m.HeapAlloc >> 20,
		HeapSysMB:   m.HeapSys >> 20,
		NumGC:       m.NumGC,
	}
}
