// Package dietplan turns a body profile into daily calorie and macro targets.
package dietplan

import (
	"errors"
	"math"
)

var ErrInvalidProfile = errors.New("invalid profile")

type Sex string

const (
	Male   Sex = "male"
	Female Sex = "female"
)

type Activity string

const (
	Sedentary  Activity = "sedentary"
	Light      Activity = "light"
	Moderate   Activity = "moderate"
	Active     Activity = "active"
	VeryActive Activity = "very_active"
)

var activityFactor = map[Activity]float64{
	Sedentary:  1.2,
	Light:      1.375,
	Moderate:   1.55,
	Active:     1.725,
	VeryActive: 1.9,
}

type Goal string

const (
	Lose     Goal = "lose"
	Maintain Goal = "maintain"
	Gain     Goal = "gain"
)

var goalAdjust = map[Goal]float64{
	Lose:     -0.20,
	Maintain: 0,
	Gain:     0.15,
}

const minCalories = 1200

type Profile struct {
	Sex      Sex      `json:"sex"`
	Age      int      `json:"age"`
	WeightKg float64  `json:"weightKg"`
	HeightCm float64  `json:"heightCm"`
	Activity Activity `json:"activity"`
	Goal     Goal     `json:"goal"`
}

type Plan struct {
	BMR         int     `json:"bmr"`
	TDEE        int     `json:"tdee"`
	Calories    int     `json:"calories"`
	ProteinG    int     `json:"proteinG"`
	CarbsG      int     `json:"carbsG"`
	FatG        int     `json:"fatG"`
	WaterMl     int     `json:"waterMl"`
	BMI         float64 `json:"bmi"`
	BMICategory string  `json:"bmiCategory"`
}

func (p Profile) validate() error {
	switch {
	case p.Sex != Male && p.Sex != Female:
		return fmtErr("sex must be male or female")
	case p.Age < 10 || p.Age > 120:
		return fmtErr("age out of range")
	case p.HeightCm < 50 || p.HeightCm > 250 || p.WeightKg < 10 || p.WeightKg > 400:
		return fmtErr("height/weight out of plausible range")
	}
	if _, ok := activityFactor[p.Activity]; !ok {
		return fmtErr("unknown activity level")
	}
	if _, ok := goalAdjust[p.Goal]; !ok {
		return fmtErr("unknown goal")
	}
	return nil
}

type profileError string

func (e profileError) Error() string { return string(e) }
func (e profileError) Unwrap() error { return ErrInvalidProfile }

func fmtErr(msg string) error { return profileError(msg) }

// Calculate uses Mifflin-St Jeor for BMR, an activity multiplier for TDEE
// and a percentage adjustment for the goal, never going under 1200 kcal.
// Protein is set per kg of body weight, fat at 25% of calories, and carbs take
// what is left.
func Calculate(p Profile) (Plan, error) {
	if p.Activity == "" {
		p.Activity = Moderate
	}
	if p.Goal == "" {
		p.Goal = Maintain
	}
	if err := p.validate(); err != nil {
		return Plan{}, err
	}

	bmr := 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.Age)
	if p.Sex == Male {
		bmr += 5
	} else {
		bmr -= 161
	}
	tdee := bmr * activityFactor[p.Activity]
	kcal := math.Max(tdee*(1+goalAdjust[p.Goal]), minCalories)

	perKg := 1.8
	if p.Goal == Lose {
		perKg = 2.0
	}
	protein := perKg * p.WeightKg
	fat := kcal * 0.25 / 9
	carbs := math.Max((kcal-protein*4-fat*9)/4, 0)

	bmi, cat := BMI(p.HeightCm, p.WeightKg)
	return Plan{
		BMR:         round(bmr),
		TDEE:        round(tdee),
		Calories:    round(kcal),
		ProteinG:    round(protein),
		CarbsG:      round(carbs),
		FatG:        round(fat),
		WaterMl:     round(35 * p.WeightKg),
		BMI:         math.Round(bmi*10) / 10,
		BMICategory: cat,
	}, nil
}

// BMI expects centimeters and kilograms.
func BMI(heightCm, weightKg float64) (float64, string) {
	h := heightCm / 100.0
	bmi := weightKg / (h * h)
	switch {
	case bmi < 18.5:
		return bmi, "underweight"
	case bmi < 25.0:
		return bmi, "normal"
	case bmi < 30.0:
		return bmi, "overweight"
	case bmi < 35.0:
		return bmi, "obesity_1"
	case bmi < 40.0:
		return bmi, "obesity_2"
	default:
		return bmi, "obesity_3"
	}
}

func round(f float64) int { return int(math.Round(f)) }
