package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/hitoshi/cleardental/internal/gate"
	"github.com/hitoshi/cleardental/internal/model"
)

// ProfileLookuper はユーザーIDでプロフィールを検索するインターフェース。
type ProfileLookuper interface {
	Lookup(ctx context.Context, userID string) model.ProfileLookup
}

// profileHolder はリクエスト内で1度だけプロフィールを検索し、結果を共有する。
type profileHolder struct {
	once   sync.Once
	load   func() model.ProfileLookup
	result model.ProfileLookup
}

func (h *profileHolder) get() model.ProfileLookup {
	h.once.Do(func() {
		h.result = h.load()
	})
	return h.result
}

// errProfileContextMissing はセッションがあるのにプロフィールのホルダーがない場合のエラー。
// ルーティングの設定漏れであり、許可側に倒さないよう上流エラーとして扱う。
var errProfileContextMissing = errors.New("profile context not configured")

// NewProfileContextMiddleware はリクエスト単位のプロフィール参照をコンテキストに用意する。
// 検索は最初に必要になった時点で1度だけ行われ、以降は同じ結果を返す。
// セッションミドルウェアの後に配置すること。
func NewProfileContextMiddleware(lookuper ProfileLookuper) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			holder := &profileHolder{
				load: func() model.ProfileLookup {
					return lookuper.Lookup(ctx, session.UserID)
				},
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, profileContextKey, holder)))
		})
	}
}

// LookupProfile はリクエストの呼び出し元のプロフィールを返す。
// 未認証の場合はNotFoundを返す。
func LookupProfile(ctx context.Context) model.ProfileLookup {
	if _, ok := SessionFromContext(ctx); !ok {
		return model.NotFound()
	}
	holder, ok := ctx.Value(profileContextKey).(*profileHolder)
	if !ok {
		return model.UpstreamFailure(errProfileContextMissing)
	}
	return holder.get()
}

// ProfileLoader はゲート判定用の遅延ローダーを返す。
func ProfileLoader(ctx context.Context) gate.ProfileLoader {
	return func() model.ProfileLookup {
		return LookupProfile(ctx)
	}
}

// ContextWithProfile は検索済みのプロフィールをコンテキストに注入する。
// テストで使用する。
func ContextWithProfile(ctx context.Context, lookup model.ProfileLookup) context.Context {
	holder := &profileHolder{load: func() model.ProfileLookup { return lookup }}
	return context.WithValue(ctx, profileContextKey, holder)
}
