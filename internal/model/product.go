// Package model はドメインモデルを定義する。
package model

// Product はストアフロントの商品を表す。
// カタログのシード後は不変として扱う。
type Product struct {
	ID          int
	Name        string
	Price       float64 // 通貨額。非負。
	Description string
	Category    string
	ImageURL    string
	Rating      float64 // 0〜5
}

// CartLine はカート内の1商品行を表す。
// Quantityは常に1以上。0以下に減らすコマンドは行自体を削除する。
type CartLine struct {
	ProductID int
	Quantity  int
}

// CartLineView はカート行に商品情報と行合計を付与した表示用投影。
type CartLineView struct {
	Product   Product
	Quantity  int
	LineTotal float64
}

// CartSummary はカート全体の表示用投影。
type CartSummary struct {
	Lines []CartLineView
	Total float64
}
