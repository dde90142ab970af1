// Package model はドメインモデルを定義する。
package model

import "time"

// User はサインアップ済みユーザーを表す。
// IDはDBのBIGSERIALで採番される。Cityはリバースジオコーディングの
// 結果から設定され、クライアント入力からは決して設定されない。
// 作成後は不変（更新・削除操作は存在しない）。
type User struct {
	ID        int64
	Name      string
	Email     string
	City      string
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
}

// Location はリバースジオコーディングの結果1件を表す。
// 結果は順序付きで返され、先頭の候補が採用される。
type Location struct {
	City    string
	Country string
}
