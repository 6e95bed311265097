package domaingate

// defaultLexicon is the flattened campus dining thesaurus: menu, payment,
// and campus phrases in Korean, English, Chinese, and Spanish. Loaded once,
// never mutated at runtime. Extend freely; New de-duplicates.
var defaultLexicon = []string{
	// menu / nutrition
	"학식", "메뉴", "식단", "오늘 뭐 나와", "영양", "알레르기", "알러지", "원산지",
	"학생식당", "교내식당", "푸드코트",
	"menu", "cafeteria", "canteen", "dining hall", "nutrition", "allergy",
	"ingredients", "lunch today",
	"食堂", "菜单", "食谱", "今日菜单", "营养", "过敏原",
	"comedor", "carta", "nutricion", "alergia", "almuerzo de hoy",

	// payment / points
	"결제", "포인트", "쿠폰", "적립", "스탬프", "리워드", "신한페이",
	"payment", "pay", "points", "coupon", "reward", "stamp",
	"支付", "积分", "优惠券", "奖励",
	"pago", "puntos", "cupon", "recompensa",

	// campus
	"캠퍼스", "교내", "학교", "학내", "후생관",
	"campus", "student center", "on campus",
	"校内", "校园",
	"campus universitario",
}
