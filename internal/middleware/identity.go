// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証主体を格納するためのキー。
var principalContextKey = contextKey("principal")

// Principal はアクセストークンから抽出した認証主体の情報。
type Principal struct {
	Subject  string
	Email    string
	Username string
}

// NewIdentityMiddleware はAuthorizationヘッダーのBearerトークンから
// 認証主体のクレームを抽出し、リクエストコンテキストに注入するミドルウェアを返す。
// トークンの署名検証はTLS終端側のゲートウェイで行われる前提のため、
// ここではクレームの取り出しのみを行う。
// トークンが無い、または解析できないリクエストには401 Unauthorizedを返す。
func NewIdentityMiddleware() func(next http.Handler) http.Handler {
	parser := jwt.NewParser()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			raw := strings.TrimPrefix(header, bearerPrefix)

			claims := jwt.MapClaims{}
			if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			principal := Principal{
				Subject:  stringClaim(claims, "sub"),
				Email:    stringClaim(claims, "email"),
				Username: stringClaim(claims, "preferred_username"),
			}
			if principal.Subject == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// stringClaim はクレームから文字列値を取り出す。型が異なる場合は空文字を返す。
func stringClaim(claims jwt.MapClaims, name string) string {
	v, ok := claims[name].(string)
	if !ok {
		return ""
	}
	return v
}

// PrincipalFromContext はリクエストコンテキストから認証主体を取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (Principal, error) {
	principal, ok := ctx.Value(principalContextKey).(Principal)
	if !ok || principal.Subject == "" {
		return Principal{}, fmt.Errorf("principal not found in context")
	}
	return principal, nil
}

// ContextWithPrincipal はコンテキストに認証主体を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}
