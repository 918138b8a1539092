package biomech

import "KineJump/internal/domain/models"

// faultAdvice maps each technique fault to its corrective cue, ordered by
// how urgently it should be addressed.
var faultOrder = []models.FaultType{
	models.FaultKneeValgus,
	models.FaultStiffLanding,
	models.FaultInsufficientCM,
	models.FaultTrunkLean,
	models.FaultWeakArmDrive,
}

var faultAdvice = map[models.FaultType]string{
	models.FaultKneeValgus:     "keep the knees tracking over the toes through flexion and landing",
	models.FaultStiffLanding:   "flex the knees more on landing to absorb the impact",
	models.FaultInsufficientCM: "reach a deeper countermovement before driving upward",
	models.FaultTrunkLean:      "keep the trunk more upright through the whole movement",
	models.FaultWeakArmDrive:   "drive the arms upward harder during takeoff",
}

// Recommendations builds corrective cues for the observed faults. A clean
// high-scoring performance gets a progression cue instead.
func Recommendations(faults map[models.FaultType]int, score float64) []string {
	var recs []string
	for _, fault := range faultOrder {
		if faults[fault] > 0 {
			recs = append(recs, faultAdvice[fault])
		}
	}
	if len(recs) == 0 {
		if score >= 80 {
			recs = append(recs, "technique is solid; progress load or jump complexity")
		} else {
			recs = append(recs, "no technique faults detected; build height through strength work")
		}
	}
	return recs
}

// PersonalizedRecommendations seasons the session report with cues drawn
// from the athlete profile and the session's fault mix.
func PersonalizedRecommendations(athlete *models.Athlete, level models.SkillLevel, faults map[models.FaultType]int) []string {
	var recs []string

	if faults[models.FaultInsufficientCM] > 0 {
		if level == models.LevelBeginner {
			recs = append(recs, "practice deep squats to build countermovement flexibility")
		} else {
			recs = append(recs, "add paused squats at the bottom position to own the depth")
		}
	}
	if faults[models.FaultKneeValgus] > 0 {
		recs = append(recs, "strengthen the glute medius and squat with a band around the knees")
		if athlete.Sex == models.SexFemale {
			recs = append(recs, "prioritize neuromuscular knee control drills")
		}
	}
	if faults[models.FaultStiffLanding] > 0 {
		recs = append(recs, "practice soft landings from progressive heights with eccentric work")
	}

	if athlete.Age > 40 {
		recs = append(recs, "extend the warm-up before jump sessions")
	}
	if athlete.BMI() > 25 {
		recs = append(recs, "pair jump training with cardiovascular work and progress intensity gradually")
	}

	switch level {
	case models.LevelBeginner:
		recs = append(recs, "focus on technique before chasing jump height")
	case models.LevelIntermediate:
		recs = append(recs, "introduce jump variations such as unilateral and rotational takeoffs")
	default:
		recs = append(recs, "shift focus to power and velocity optimization")
	}
	return recs
}
