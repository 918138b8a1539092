package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"KineJump/internal/domain/models"
)

// Config is the full application configuration. Every threshold the engine
// consumes is user-tunable here; the default tags carry the reference
// values so an empty document is a working clinical baseline.
type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`

	Storage struct {
		Path string `yaml:"path" default:"kinejump.db" validate:"required"`
	} `yaml:"storage"`

	Pipeline struct {
		BufferSize int `yaml:"buffer_size" default:"256" validate:"gt=0"`
	} `yaml:"pipeline"`

	Pose struct {
		// ConfidenceFloor rejects frames whose required joints fall below
		// this detection confidence.
		ConfidenceFloor float64 `yaml:"confidence_floor" default:"0.5" validate:"gte=0,lte=1"`
		// CalibrationConfidence is the stricter floor used while taking
		// the standing reference.
		CalibrationConfidence float64 `yaml:"calibration_confidence" default:"0.7" validate:"gte=0,lte=1"`
		SmoothingWindow       int     `yaml:"smoothing_window" default:"5" validate:"gt=0"`
		VelocityWindow        int     `yaml:"velocity_window" default:"3" validate:"gt=1"`
		// MaxAngleRateDeg is the jitter gate: an angle step implying a
		// faster joint rotation than this is held over instead of
		// propagated.
		MaxAngleRateDeg float64 `yaml:"max_angle_rate_deg" default:"1500" validate:"gt=0"`
	} `yaml:"pose"`

	Jump struct {
		MinFlightTime            float64 `yaml:"min_flight_time" default:"0.15" validate:"gt=0"`
		MinVerticalDisplacementM float64 `yaml:"min_vertical_displacement_m" default:"0.10" validate:"gt=0"`
		MaxLandingTime           float64 `yaml:"max_landing_time" default:"0.5" validate:"gt=0"`
		ValgusToleranceX         float64 `yaml:"knee_valgus_tolerance_x" default:"0.04" validate:"gt=0"`
		StiffLandingToleranceDeg float64 `yaml:"stiff_landing_tolerance" default:"10" validate:"gte=0"`
		// MaxCountermovementTime aborts an attempt that never reaches
		// propulsion.
		MaxCountermovementTime float64 `yaml:"max_countermovement_time" default:"5.0" validate:"gt=0"`
		// TransitionDwell is the debounce window for noisy transition
		// conditions.
		TransitionDwell    float64 `yaml:"transition_dwell" default:"0.05" validate:"gt=0"`
		SettleVelocityDeg  float64 `yaml:"settle_velocity_deg" default:"30" validate:"gt=0"`
		LiftoffVelocity    float64 `yaml:"liftoff_velocity" default:"0.25" validate:"gt=0"`
		HeelContactEpsilon float64 `yaml:"heel_contact_epsilon" default:"0.02" validate:"gt=0"`
		// SQJHoldTime is the minimum held squat before propulsion in the
		// squat-jump protocol.
		SQJHoldTime float64 `yaml:"sqj_hold_time" default:"3.0" validate:"gte=0"`
	} `yaml:"jump"`

	ROM struct {
		Knee struct {
			FlexionMinCM        float64 `yaml:"flexion_min_cm" default:"90"`
			FlexionTargetCM     float64 `yaml:"flexion_target_cm" default:"70"`
			ExtensionTakeoff    float64 `yaml:"extension_takeoff" default:"170"`
			FlexionLandingMax   float64 `yaml:"flexion_landing_max" default:"90"`
			ExtensionLandingMin float64 `yaml:"extension_landing_min" default:"160"`
		} `yaml:"knee"`
		Hip struct {
			FlexionMinCM      float64 `yaml:"flexion_min_cm" default:"100"`
			ExtensionTakeoff  float64 `yaml:"extension_takeoff" default:"170"`
			FlexionLandingMax float64 `yaml:"flexion_landing_max" default:"90"`
		} `yaml:"hip"`
		Ankle struct {
			DorsiflexionCM        float64 `yaml:"dorsiflexion_cm" default:"70"`
			PlantarflexionTakeoff float64 `yaml:"plantarflexion_takeoff" default:"160"`
			DorsiflexionLanding   float64 `yaml:"dorsiflexion_landing" default:"80"`
		} `yaml:"ankle"`
		Trunk struct {
			MaxLeanDeg float64 `yaml:"max_lean_deg" default:"30"`
		} `yaml:"trunk"`
	} `yaml:"rom"`

	Levels struct {
		Beginner     LevelParams `yaml:"beginner"`
		Intermediate LevelParams `yaml:"intermediate"`
		Advanced     LevelParams `yaml:"advanced"`
	} `yaml:"levels"`

	Bands struct {
		Men   BandSet `yaml:"men"`
		Women BandSet `yaml:"women"`
	} `yaml:"bands"`

	Proportions struct {
		Male   Proportion `yaml:"male"`
		Female Proportion `yaml:"female"`
	} `yaml:"proportions"`

	Technique struct {
		// Precision bands map a technical score onto the same three
		// levels as the height bands.
		PrecisionMidPct  float64 `yaml:"precision_mid_pct" default:"60" validate:"gt=0,lt=100"`
		PrecisionHighPct float64 `yaml:"precision_high_pct" default:"80" validate:"gt=0,lt=100"`
		// BandEdgeMarginCM bounds how close to a band boundary a height
		// must sit before the technical score is consulted.
		BandEdgeMarginCM float64 `yaml:"band_edge_margin_cm" default:"2.0" validate:"gte=0"`
	} `yaml:"technique"`
}

// LevelParams are the per-skill-level tolerances.
type LevelParams struct {
	AngleToleranceDeg  float64 `yaml:"angle_tolerance"`
	MinCMVelocity      float64 `yaml:"min_cm_velocity"`
	MinTakeoffVelocity float64 `yaml:"min_takeoff_velocity"`
	MinROMCM           float64 `yaml:"min_rom_cm"`
}

// Band holds the upper bounds (cm) of the low, mid and advanced height
// bands for one jump type; heights above AdvMaxCM are elite.
type Band struct {
	LowMaxCM float64 `yaml:"low_max_cm"`
	MidMaxCM float64 `yaml:"mid_max_cm"`
	AdvMaxCM float64 `yaml:"adv_max_cm"`
}

// BandSet holds the height bands per jump type for one sex.
type BandSet struct {
	CMJ      Band `yaml:"cmj"`
	SQJ      Band `yaml:"sqj"`
	Abalakov Band `yaml:"abalakov"`
}

// Proportion maps standing height to segment lengths.
type Proportion struct {
	Femur       float64 `yaml:"femur"`
	Tibia       float64 `yaml:"tibia"`
	KneeSpacing float64 `yaml:"knee_spacing"`
}

var validate = validator.New()

// Load reads, defaults and validates a YAML configuration file. Any
// malformed or missing value fails here, before a single frame is
// processed.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse builds a Config from raw YAML bytes.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	c.applyTableDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Default returns the built-in reference configuration.
func Default() *Config {
	c, err := Parse([]byte("{}"))
	if err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return c
}

// LoadWithEnv loads config from YAML and overrides with environment
// variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("KINEJUMP_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("KINEJUMP_PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := os.Getenv("KINEJUMP_DB"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("KINEJUMP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return c, nil
}

// applyTableDefaults fills the nested tables the defaults library cannot
// express per-instance: level tolerances, height bands and anthropometric
// proportions.
func (c *Config) applyTableDefaults() {
	if c.Levels.Beginner == (LevelParams{}) {
		c.Levels.Beginner = LevelParams{AngleToleranceDeg: 20, MinCMVelocity: 0.10, MinTakeoffVelocity: 0.4, MinROMCM: 70}
	}
	if c.Levels.Intermediate == (LevelParams{}) {
		c.Levels.Intermediate = LevelParams{AngleToleranceDeg: 10, MinCMVelocity: 0.20, MinTakeoffVelocity: 0.8, MinROMCM: 80}
	}
	if c.Levels.Advanced == (LevelParams{}) {
		c.Levels.Advanced = LevelParams{AngleToleranceDeg: 5, MinCMVelocity: 0.30, MinTakeoffVelocity: 1.2, MinROMCM: 90}
	}
	if c.Bands.Men == (BandSet{}) {
		c.Bands.Men = BandSet{
			CMJ:      Band{LowMaxCM: 30, MidMaxCM: 40, AdvMaxCM: 50},
			SQJ:      Band{LowMaxCM: 25, MidMaxCM: 35, AdvMaxCM: 45},
			Abalakov: Band{LowMaxCM: 35, MidMaxCM: 45, AdvMaxCM: 55},
		}
	}
	if c.Bands.Women == (BandSet{}) {
		c.Bands.Women = BandSet{
			CMJ:      Band{LowMaxCM: 22, MidMaxCM: 30, AdvMaxCM: 38},
			SQJ:      Band{LowMaxCM: 18, MidMaxCM: 25, AdvMaxCM: 33},
			Abalakov: Band{LowMaxCM: 25, MidMaxCM: 35, AdvMaxCM: 43},
		}
	}
	if c.Proportions.Male == (Proportion{}) {
		c.Proportions.Male = Proportion{Femur: 0.23, Tibia: 0.22, KneeSpacing: 0.18}
	}
	if c.Proportions.Female == (Proportion{}) {
		c.Proportions.Female = Proportion{Femur: 0.22, Tibia: 0.21, KneeSpacing: 0.17}
	}
}

// Validate checks the configuration beyond struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Technique.PrecisionMidPct >= c.Technique.PrecisionHighPct {
		return fmt.Errorf("technique.precision_mid_pct must be below precision_high_pct")
	}
	for _, bs := range []struct {
		name string
		b    BandSet
	}{{"men", c.Bands.Men}, {"women", c.Bands.Women}} {
		for _, band := range []Band{bs.b.CMJ, bs.b.SQJ, bs.b.Abalakov} {
			if !(band.LowMaxCM < band.MidMaxCM && band.MidMaxCM < band.AdvMaxCM) {
				return fmt.Errorf("bands.%s: band bounds must be strictly increasing", bs.name)
			}
		}
	}
	for name, lp := range map[string]LevelParams{
		"beginner": c.Levels.Beginner, "intermediate": c.Levels.Intermediate, "advanced": c.Levels.Advanced,
	} {
		if lp.AngleToleranceDeg < 0 || lp.MinROMCM <= 0 {
			return fmt.Errorf("levels.%s: invalid tolerances", name)
		}
	}
	return nil
}

// LevelFor returns the tolerance set for a skill level.
func (c *Config) LevelFor(l models.SkillLevel) LevelParams {
	switch l {
	case models.LevelIntermediate:
		return c.Levels.Intermediate
	case models.LevelAdvanced, models.LevelElite:
		return c.Levels.Advanced
	default:
		return c.Levels.Beginner
	}
}

// BandFor returns the height band table for a sex and jump type.
func (c *Config) BandFor(sex models.Sex, t models.JumpType) Band {
	bs := c.Bands.Men
	if sex == models.SexFemale {
		bs = c.Bands.Women
	}
	switch t {
	case models.JumpSQJ:
		return bs.SQJ
	case models.JumpAbalakov:
		return bs.Abalakov
	default:
		return bs.CMJ
	}
}

// ProportionFor returns the anthropometric proportions for a sex.
func (c *Config) ProportionFor(sex models.Sex) Proportion {
	if sex == models.SexFemale {
		return c.Proportions.Female
	}
	return c.Proportions.Male
}
