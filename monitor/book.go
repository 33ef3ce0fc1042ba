package monitor

import (
	"sort"
	"sync"

	"github.com/rustyeddy/stakewatch/market"
)

// book is the published set of holdings, indexed by security. The rows of
// one security are an owner-keyed map that is never mutated once stored;
// a write copies it. Only the partition that owns a security writes its
// rows, so readers in other partitions need no lock.
type book struct {
	rows sync.Map // security ID -> map[string]market.Holding
}

func (b *book) security(sid string) map[string]market.Holding {
	v, ok := b.rows.Load(sid)
	if !ok {
		return nil
	}
	return v.(map[string]market.Holding)
}

func (b *book) get(k market.HoldingKey) (market.Holding, bool) {
	h, ok := b.security(k.SecurityID)[k.Owner]
	return h, ok
}

func (b *book) put(h market.Holding) {
	cur := b.security(h.SecurityID)
	next := make(map[string]market.Holding, len(cur)+1)
	for owner, row := range cur {
		next[owner] = row
	}
	next[h.Owner] = h
	b.rows.Store(h.SecurityID, next)
}

func (b *book) has(sid string) bool {
	return len(b.security(sid)) > 0
}

// appendRows adds the rows of each security to out.
func (b *book) appendRows(out []market.Holding, ids ...string) []market.Holding {
	for _, sid := range ids {
		for _, h := range b.security(sid) {
			out = append(out, h)
		}
	}
	return out
}

// all returns every row ordered by security then owner.
func (b *book) all() []market.Holding {
	var out []market.Holding
	b.rows.Range(func(_, v any) bool {
		for _, h := range v.(map[string]market.Holding) {
			out = append(out, h)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].SecurityID != out[j].SecurityID {
			return out[i].SecurityID < out[j].SecurityID
		}
		return out[i].Owner < out[j].Owner
	})
	return out
}
