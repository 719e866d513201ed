package arena

import (
	"context"
	"unsafe"
)

type allocatorCtxKey string

const arenaCtxKey allocatorCtxKey = "_arCtxK"

// WithAllocator allows you to bind ctx with target allocator
// and than receive it from ctx using GetAllocator and GetAllocatorOrDefault methods.
func WithAllocator(ctx context.Context, allocator Allocator) context.Context {
	return context.WithValue(ctx, arenaCtxKey, allocator)
}

// GetAllocator allows you to receive allocator associated with this ctx.
// Returns allocator and true if there was some association.
func GetAllocator(ctx context.Context) (Allocator, bool) {
	value := ctx.Value(arenaCtxKey)
	if value == nil {
		return nil, false
	}
	allocator, ok := value.(Allocator)
	if !ok {
		return nil, false
	}
	return allocator, true
}

// GetAllocatorOrDefault allows you to receive allocator associated with this ctx.
// Returns associated allocator or defaultAllocator if there were to association.
func GetAllocatorOrDefault(ctx context.Context, defaultAllocator Allocator) Allocator {
	ctxAllocator, ok := GetAllocator(ctx)
	if !ok {
		return defaultAllocator
	}
	return ctxAllocator
}

// HookFor returns the unified hook and its user state for the allocator bound to ctx,
// ready to be passed to the interpreter state constructor.
// Returns false if nothing is bound or the bound allocator has no hook.
func HookFor(ctx context.Context) (AllocFunc, unsafe.Pointer, bool) {
	allocator, ok := GetAllocator(ctx)
	if !ok {
		return nil, nil, false
	}
	switch target := allocator.(type) {
	case *FixedAllocator:
		return Hook, target.UserState(), true
	case *HeapAllocator:
		return HeapHook, target.UserState(), true
	default:
		return nil, nil, false
	}
}
