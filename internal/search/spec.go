// Package search はリマインダー検索条件の組み立てを提供する。
// オプショナルな各フィルタを独立した述語として構築し、論理ANDで合成する。
// このパッケージは純粋なクエリ記述の生成のみを行い、状態を変更しない。
package search

import (
	"fmt"
	"strings"

	"github.com/hitoshi/remindman/internal/model"
)

// Predicate はWHERE句の1条件を表す。
// exprの "?" プレースホルダは合成時に位置引数（$1, $2, ...）へ書き換えられる。
type Predicate struct {
	expr string
	args []any
}

// NewPredicate はPredicateを生成する。
func NewPredicate(expr string, args ...any) Predicate {
	return Predicate{expr: expr, args: args}
}

// Spec は合成済みの検索条件を表す。
// Whereは位置引数プレースホルダを含むSQL断片、OrderByはホワイトリスト済みの
// ソート指定で、そのままクエリに埋め込んで安全。
type Spec struct {
	Where   string
	Args    []any
	OrderBy string
	Limit   int
	Offset  int
}

// WithUserID は所有者IDの述語を生成する。
// 呼び出し側から供給されることはなく、常に検索条件に含まれる。
func WithUserID(userID string) Predicate {
	return NewPredicate("user_id = ?", userID)
}

// WithTitleContains はタイトルの部分一致述語を生成する（大文字小文字を区別しない）。
func WithTitleContains(title string) Predicate {
	return NewPredicate("title ILIKE ?", "%"+escapeLike(title)+"%")
}

// WithDescriptionContains は説明の部分一致述語を生成する（大文字小文字を区別しない）。
func WithDescriptionContains(description string) Predicate {
	return NewPredicate("description ILIKE ?", "%"+escapeLike(description)+"%")
}

// WithRemindFrom は通知予定日時の下限述語を生成する（境界を含む）。
func WithRemindFrom(from any) Predicate {
	return NewPredicate("remind_at >= ?", from)
}

// WithRemindTo は通知予定日時の上限述語を生成する（境界を含む）。
func WithRemindTo(to any) Predicate {
	return NewPredicate("remind_at <= ?", to)
}

// Build はSearchFilterと所有者IDから検索Specを合成する。
// 所有者ID述語は常に含まれ、他ユーザーのリマインダーは決して結果に現れない。
// 空のフィルタ項目は述語を生成しない。
func Build(filter model.SearchFilter, userID string) *Spec {
	preds := []Predicate{WithUserID(userID)}

	if filter.TitleContains != "" {
		preds = append(preds, WithTitleContains(filter.TitleContains))
	}
	if filter.DescriptionContains != "" {
		preds = append(preds, WithDescriptionContains(filter.DescriptionContains))
	}
	if filter.RemindFrom != nil {
		preds = append(preds, WithRemindFrom(*filter.RemindFrom))
	}
	if filter.RemindTo != nil {
		preds = append(preds, WithRemindTo(*filter.RemindTo))
	}

	where, args := and(preds)

	return &Spec{
		Where:   where,
		Args:    args,
		OrderBy: orderBy(filter.SortBy, filter.SortDirection),
		Limit:   filter.PageSize,
		Offset:  filter.Page * filter.PageSize,
	}
}

// and は述語群を論理ANDで合成し、"?"を位置引数に書き換える。
func and(preds []Predicate) (string, []any) {
	var exprs []string
	var args []any

	pos := 1
	for _, p := range preds {
		expr := p.expr
		for range p.args {
			expr = strings.Replace(expr, "?", fmt.Sprintf("$%d", pos), 1)
			pos++
		}
		exprs = append(exprs, expr)
		args = append(args, p.args...)
	}

	return strings.Join(exprs, " AND "), args
}

// orderBy はソート指定をホワイトリストで検証してORDER BY句を生成する。
// sortByが"title"以外の値の場合はremind_atとして扱う。
// directionは"desc"（大文字小文字を区別しない）の場合のみ降順、それ以外は昇順。
func orderBy(sortBy, direction string) string {
	field := model.SortFieldRemindAt
	if strings.ToLower(sortBy) == "title" {
		field = model.SortFieldTitle
	}

	dir := "ASC"
	if strings.EqualFold(direction, "desc") {
		dir = "DESC"
	}

	return fmt.Sprintf("%s %s", field, dir)
}

// escapeLike はLIKEパターンの特殊文字をエスケープする。
// ユーザー入力の "%" や "_" がワイルドカードとして解釈されることを防ぐ。
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
