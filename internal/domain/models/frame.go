package models

// Joint identifies a body landmark in the pose stream.
type Joint string

const (
	JointLeftShoulder  Joint = "left_shoulder"
	JointRightShoulder Joint = "right_shoulder"
	JointLeftHip       Joint = "left_hip"
	JointRightHip      Joint = "right_hip"
	JointLeftKnee      Joint = "left_knee"
	JointRightKnee     Joint = "right_knee"
	JointLeftAnkle     Joint = "left_ankle"
	JointRightAnkle    Joint = "right_ankle"
	JointLeftHeel      Joint = "left_heel"
	JointRightHeel     Joint = "right_heel"
)

// RequiredJoints lists the landmarks an analysable frame must carry.
var RequiredJoints = []Joint{
	JointLeftShoulder, JointRightShoulder,
	JointLeftHip, JointRightHip,
	JointLeftKnee, JointRightKnee,
	JointLeftAnkle, JointRightAnkle,
	JointLeftHeel, JointRightHeel,
}

// Landmark is one detected joint position in normalized image coordinates.
// Y grows downward (image convention), so a rising hip means a shrinking Y.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Confidence float64 `json:"confidence"`
}

// Frame is one raw pose observation. Timestamps are seconds on a strictly
// increasing clock; frames must be delivered in timestamp order.
type Frame struct {
	Timestamp float64            `json:"ts"`
	Joints    map[Joint]Landmark `json:"joints"`
}

// JointAngleSample is the conditioned output of the preprocessor for one
// accepted frame. Angles are interior joint angles in degrees (a straight
// joint reads near 180), velocities are signed degrees per second where a
// positive value means the joint is extending.
type JointAngleSample struct {
	Timestamp float64

	Knee  float64
	Hip   float64
	Ankle float64
	// Trunk is the inclination of the shoulder-hip segment from vertical,
	// in degrees; 0 is fully upright.
	Trunk float64

	KneeVel     float64
	HipVel      float64
	AnkleVel    float64
	ShoulderVel float64

	// HipY and HeelY are normalized vertical positions (image convention,
	// larger is lower). Velocities are normalized units per second.
	HipY     float64
	HeelY    float64
	HipVelY  float64
	HeelVelY float64

	// KneeValgusDev is the largest inward horizontal deviation of either
	// knee from its own hip-ankle line, in normalized units. Positive
	// means the knee has collapsed inward.
	KneeValgusDev float64
}
