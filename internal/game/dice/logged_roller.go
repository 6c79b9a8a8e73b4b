package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger to provide logged dice rolling and formula
// evaluation. Every roll is logged at debug level with expression, dice values,
// and total so a session transcript can be reconstructed afterwards.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Source returns the underlying randomness source.
func (r *Roller) Source() Source {
	return r.src
}

// Roll evaluates expr and logs the result at debug level.
//
// Precondition: expr must come from Parse.
func (r *Roller) Roll(expr Expression) RollResult {
	result := Roll(expr, r.src)
	r.logger.Debug("dice roll",
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("modifier", result.Modifier),
		zap.Int("total", result.Total()),
	)
	return result
}

// RollExpr parses expr and rolls it, logging the result.
//
// Postcondition: Returns a RollResult or a parse error.
func (r *Roller) RollExpr(expr string) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return r.Roll(e), nil
}

// EvalFormula evaluates a formula string against vars, logging the outcome.
//
// Postcondition: Returns a FormulaResult or a parse error.
func (r *Roller) EvalFormula(expr string, vars Bindings) (FormulaResult, error) {
	result, err := EvalFormula(expr, vars, r.src)
	if err != nil {
		return FormulaResult{}, err
	}
	r.logger.Debug("formula roll",
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Rolls),
		zap.Float64("total", result.Total),
	)
	return result, nil
}
