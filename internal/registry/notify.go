package registry

import (
	"github.com/standardbeagle/assetindex/internal/asset"
	"github.com/standardbeagle/assetindex/internal/fileops"
)

// Sink receives registry change notifications on the owner context.
// Batches are only valid for the duration of the call.
type Sink interface {
	BeforeInserted(batch []*asset.Record)
	AfterInserted(batch []*asset.Record)
	Updated(batch []*asset.Record)
	BeforeRemoved(batch []*asset.Record)
	AfterRemoved(batch []*asset.Record)
	ScanCompleted()
	// FilesDeleted reports the physical outcome of a DeleteWithFiles call.
	FilesDeleted(res fileops.Result)
}

// NopSink ignores every notification. Embed it to implement a subset.
type NopSink struct{}

func (NopSink) BeforeInserted([]*asset.Record) {}
func (NopSink) AfterInserted([]*asset.Record)  {}
func (NopSink) Updated([]*asset.Record)        {}
func (NopSink) BeforeRemoved([]*asset.Record)  {}
func (NopSink) AfterRemoved([]*asset.Record)   {}
func (NopSink) ScanCompleted()                 {}
func (NopSink) FilesDeleted(fileops.Result)    {}

var _ Sink = NopSink{}
