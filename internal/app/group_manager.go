package app

import (
	"sync"

	"github.com/dkeye/Sketch/internal/core"
	"github.com/dkeye/Sketch/internal/domain"
)

type GroupManagerImpl struct {
	mu     sync.RWMutex
	groups map[domain.RoomID]core.GroupService
}

func NewGroupManager() core.GroupFactory {
	return &GroupManagerImpl{groups: make(map[domain.RoomID]core.GroupService)}
}

func (f *GroupManagerImpl) GetOrCreate(id domain.RoomID) core.GroupService {
	f.mu.RLock()
	group, ok := f.groups[id]
	f.mu.RUnlock()
	if ok {
		return group
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if group, ok = f.groups[id]; ok {
		return group
	}
	group = core.NewGroupService(id)
	f.groups[id] = group
	return group
}

func (f *GroupManagerImpl) Get(id domain.RoomID) (core.GroupService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	group, ok := f.groups[id]
	return group, ok
}

func (f *GroupManagerImpl) List() []core.GroupInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.GroupInfo, 0, len(f.groups))
	for id, g := range f.groups {
		out = append(out, core.GroupInfo{RoomID: id, MemberCount: g.MemberCount()})
	}
	return out
}

func (f *GroupManagerImpl) StopGroup(id domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups, id)
}
