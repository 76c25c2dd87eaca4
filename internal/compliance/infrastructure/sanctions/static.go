// Package sanctions 提供静态配置的制裁信息源实现
package sanctions

import (
	"context"
	"strings"
	"sync"
)

// StaticFeed 基于静态名单的制裁信息源，可在运行时整体替换名单
type StaticFeed struct {
	mu    sync.RWMutex
	codes map[string]struct{}
}

// NewStaticFeed 创建静态制裁信息源，国家码不区分大小写
func NewStaticFeed(countryCodes []string) *StaticFeed {
	f := &StaticFeed{}
	f.Replace(countryCodes)
	return f
}

// Flagged 目的国是否在名单中
func (f *StaticFeed) Flagged(ctx context.Context, countryCode string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.codes[strings.ToUpper(countryCode)]
	return ok
}

// Replace 整体替换名单
func (f *StaticFeed) Replace(countryCodes []string) {
	codes := make(map[string]struct{}, len(countryCodes))
	for _, c := range countryCodes {
		if c == "" {
			continue
		}
		codes[strings.ToUpper(c)] = struct{}{}
	}
	f.mu.Lock()
	f.codes = codes
	f.mu.Unlock()
}
