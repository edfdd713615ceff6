package optim

import "strings"

// Kind selects an optimization algorithm.
type Kind int

const (
	KindAdam Kind = iota
	KindSGD
	KindAdagrad
	KindRMSprop
	KindSparseAdam
)

var kindNames = map[Kind]string{
	KindAdam:       "adam",
	KindSGD:        "sgd",
	KindAdagrad:    "adagrad",
	KindRMSprop:    "rmsprop",
	KindSparseAdam: "sparse_adam",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind resolves an optimizer name. Case and the separators '-', '_'
// and ' ' are ignored. The boolean is false for unknown names.
func ParseKind(name string) (Kind, bool) {
	switch normalize(name) {
	case "adam":
		return KindAdam, true
	case "sgd":
		return KindSGD, true
	case "adagrad":
		return KindAdagrad, true
	case "rmsprop":
		return KindRMSprop, true
	case "sparseadam":
		return KindSparseAdam, true
	}
	return KindAdam, false
}

// SchedulerKind selects a learning-rate schedule.
type SchedulerKind int

const (
	SchedulerNone SchedulerKind = iota
	SchedulerMultiStep
	SchedulerStep
	SchedulerExponential
	SchedulerCosine
	SchedulerLambda
	SchedulerPlateau
)

var schedulerNames = map[SchedulerKind]string{
	SchedulerNone:        "none",
	SchedulerMultiStep:   "multisteplr",
	SchedulerStep:        "steplr",
	SchedulerExponential: "exponentiallr",
	SchedulerCosine:      "cosineannealinglr",
	SchedulerLambda:      "lambdalr",
	SchedulerPlateau:     "reducelronplateau",
}

func (k SchedulerKind) String() string {
	if name, ok := schedulerNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseSchedulerKind resolves a scheduler name the same way ParseKind does.
// A trailing "lr" is optional. Empty and "none" map to SchedulerNone.
func ParseSchedulerKind(name string) (SchedulerKind, bool) {
	n := normalize(name)
	if n != "reducelronplateau" {
		n = strings.TrimSuffix(n, "lr")
	}
	switch n {
	case "", "none":
		return SchedulerNone, true
	case "multistep":
		return SchedulerMultiStep, true
	case "step":
		return SchedulerStep, true
	case "exponential":
		return SchedulerExponential, true
	case "cosineannealing", "cosine":
		return SchedulerCosine, true
	case "lambda":
		return SchedulerLambda, true
	case "reducelronplateau", "plateau":
		return SchedulerPlateau, true
	}
	return SchedulerNone, false
}

func normalize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(name)))
}
