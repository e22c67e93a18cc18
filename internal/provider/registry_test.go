package provider

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

type stubAdapter struct {
	supports bool
}

func (s stubAdapter) SupportsRoute(_, _, _ string) bool { return s.supports }

func (s stubAdapter) GetQuote(_ context.Context, _ Request) (Quote, error) {
	return Quote{OutputAmount: decimal.NewFromInt(1)}, nil
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	reg := NewRegistry()
	desc := Descriptor{ID: "hopway", Active: true}
	if err := reg.Register(desc, stubAdapter{supports: true}); err != nil {
		t.Fatalf("首次注册不应报错: %v", err)
	}
	if err := reg.Register(desc, stubAdapter{supports: true}); err == nil {
		t.Fatal("重复 id 应报错")
	}
	if err := reg.Register(Descriptor{}, stubAdapter{}); err == nil {
		t.Fatal("空 id 应报错")
	}
	if err := reg.Register(Descriptor{ID: "other"}, nil); err == nil {
		t.Fatal("nil adapter 应报错")
	}
}

func TestRegistryListKeepsRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		if err := reg.Register(Descriptor{ID: id}, stubAdapter{}); err != nil {
			t.Fatalf("注册 %s 失败: %v", id, err)
		}
	}

	listed := reg.List()
	want := []string{"zeta", "alpha", "mid"}
	if len(listed) != len(want) {
		t.Fatalf("期望 %d 个 provider, 实际 %d", len(want), len(listed))
	}
	for i, entry := range listed {
		if entry.Descriptor.ID != want[i] {
			t.Fatalf("位置 %d 期望 %s, 实际 %s", i, want[i], entry.Descriptor.ID)
		}
	}
}

func TestRegistryEligibleFilters(t *testing.T) {
	reg := NewRegistry()
	chains := []string{"ethereum", "arbitrum"}

	mustRegister := func(desc Descriptor, a Adapter) {
		t.Helper()
		if err := reg.Register(desc, a); err != nil {
			t.Fatalf("注册 %s 失败: %v", desc.ID, err)
		}
	}

	mustRegister(Descriptor{ID: "ok", Chains: chains, Active: true}, stubAdapter{supports: true})
	mustRegister(Descriptor{ID: "inactive", Chains: chains, Active: false}, stubAdapter{supports: true})
	mustRegister(Descriptor{ID: "wrong-chain", Chains: []string{"polygon"}, Active: true}, stubAdapter{supports: true})
	mustRegister(Descriptor{ID: "wrong-token", Chains: chains, Tokens: []string{"DAI"}, Active: true}, stubAdapter{supports: true})
	mustRegister(Descriptor{ID: "adapter-says-no", Chains: chains, Active: true}, stubAdapter{supports: false})

	eligible := reg.Eligible(Request{
		SourceChain:      "Ethereum",
		DestinationChain: "arbitrum",
		SourceToken:      "usdc",
		Amount:           decimal.NewFromInt(100),
	})
	if len(eligible) != 1 {
		t.Fatalf("期望 1 个合格 provider, 实际 %d", len(eligible))
	}
	if eligible[0].Descriptor.ID != "ok" {
		t.Fatalf("期望 ok, 实际 %s", eligible[0].Descriptor.ID)
	}
}

func TestDescriptorTokenSupport(t *testing.T) {
	open := Descriptor{Chains: []string{"ethereum"}}
	if !open.SupportsToken("anything") {
		t.Fatal("空 token 列表应接受所有 token")
	}

	limited := Descriptor{Tokens: []string{"USDC"}}
	if !limited.SupportsToken("usdc") {
		t.Fatal("token 匹配应忽略大小写")
	}
	if limited.SupportsToken("DAI") {
		t.Fatal("未列出的 token 不应匹配")
	}
}
