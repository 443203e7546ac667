package validate

// Shared nutrition field lists. The wire names are fixed: kcal is kcal,
// a model answering with "calories" fails the schema.
var totalFields = []Field{
	{Name: "kcal", Kind: KindInteger, Required: true, NonNegative: true},
	{Name: "protein_g", Kind: KindInteger, Required: true, NonNegative: true},
	{Name: "fat_g", Kind: KindInteger, Required: true, NonNegative: true},
	{Name: "carbs_g", Kind: KindInteger, Required: true, NonNegative: true},
	{Name: "sugar_g", Kind: KindInteger, NonNegative: true},
	{Name: "fiber_g", Kind: KindInteger, NonNegative: true},
}

// TotalSchema validates a day or meal total.
var TotalSchema = &Schema{Name: "total", Fields: totalFields}

// ItemSchema validates one recognized food item.
var ItemSchema = &Schema{
	Name: "item",
	Fields: append([]Field{
		{Name: "name", Kind: KindString, Required: true},
		{Name: "weight_g", Kind: KindInteger, NonNegative: true},
	}, totalFields...),
}

// MealSchema validates the intake and meal-editor responses.
var MealSchema = &Schema{
	Name: "meal",
	Fields: []Field{
		{Name: "items", Kind: KindList, Required: true, Elem: ItemSchema},
		{Name: "total", Kind: KindObject, Required: true, Object: TotalSchema},
		{Name: "clarification", Kind: KindString},
	},
}

// ContextSchema validates the contextual-analysis response. Both keys
// are optional: a partial answer merges, it never resets the day.
var ContextSchema = &Schema{
	Name: "context analysis",
	Fields: []Field{
		{Name: "summary", Kind: KindObject, Object: &Schema{Name: "summary", Fields: totalFields}},
		{Name: "context_comment", Kind: KindString},
	},
}

// NormsSchema validates LLM-derived daily norms.
var NormsSchema = &Schema{
	Name: "norms",
	Fields: []Field{
		{Name: "BMR_kcal", Kind: KindInteger, Required: true, NonNegative: true},
		{Name: "TDEE_kcal", Kind: KindInteger, Required: true, NonNegative: true},
		{Name: "target_kcal", Kind: KindInteger, Required: true, NonNegative: true},
		{Name: "macros", Kind: KindObject, Required: true, Object: &Schema{
			Name: "macros",
			Fields: []Field{
				{Name: "protein_g", Kind: KindInteger, Required: true, NonNegative: true},
				{Name: "fat_g", Kind: KindInteger, Required: true, NonNegative: true},
				{Name: "carbs_g", Kind: KindInteger, Required: true, NonNegative: true},
			},
		}},
		{Name: "fiber_min_g", Kind: KindInteger, Required: true, NonNegative: true},
		{Name: "water_min_ml", Kind: KindInteger, Required: true, NonNegative: true},
	},
}

// ProfileSchema validates the profile-editor response.
var ProfileSchema = &Schema{
	Name: "profile",
	Fields: []Field{
		{Name: "personal", Kind: KindObject, Required: true, Object: &Schema{
			Name: "personal",
			Fields: []Field{
				{Name: "gender", Kind: KindEnum, Enum: []string{"male", "female"}},
				{Name: "age", Kind: KindNumber, NonNegative: true},
				{Name: "height_cm", Kind: KindNumber, NonNegative: true},
				{Name: "weight_kg", Kind: KindNumber, NonNegative: true},
				{Name: "activity_level", Kind: KindEnum, Enum: []string{"sedentary", "moderate", "high"}},
				{Name: "waist_cm", Kind: KindNumber, NonNegative: true},
				{Name: "bust_cm", Kind: KindNumber, NonNegative: true},
				{Name: "hips_cm", Kind: KindNumber, NonNegative: true},
			},
		}},
		{Name: "goals", Kind: KindObject, Object: &Schema{
			Name: "goals",
			Fields: []Field{
				{Name: "type", Kind: KindEnum, Enum: []string{"lose_weight", "maintain", "gain_weight"}},
				{Name: "target_change_kg", Kind: KindNumber},
				{Name: "target_weight_kg", Kind: KindNumber, NonNegative: true},
				{Name: "timeframe_days", Kind: KindNumber, NonNegative: true},
			},
		}},
		{Name: "restrictions", Kind: KindList},
		{Name: "preferences", Kind: KindList},
		{Name: "medical", Kind: KindList},
	},
}
