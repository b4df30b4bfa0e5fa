package types

// PatternFlag marks a candle pattern detection; missing data is tagged
// rather than defaulted to false-as-absence, so a pattern the engine never
// had enough candles to evaluate is distinguishable from one it evaluated
// and rejected.
type PatternFlag struct {
	Present bool
	Valid   bool
}

// DetectedPattern wraps a pattern as present and evaluated.
func DetectedPattern() PatternFlag { return PatternFlag{Present: true, Valid: true} }

// AbsentPattern wraps a pattern as evaluated and not present.
func AbsentPattern() PatternFlag { return PatternFlag{Present: false, Valid: true} }

// UnevaluatedPattern marks a pattern the engine did not have enough data to
// evaluate.
func UnevaluatedPattern() PatternFlag { return PatternFlag{} }

// StructureState is the C2-detected market-structure marker (BOS/CHoCH via
// fractal swing detection).
type StructureState string

const (
	StructureNone  StructureState = "none"
	StructureBOS   StructureState = "bos"
	StructureCHoCH StructureState = "choch"
)

// VWAPZone classifies price distance from session VWAP in sigma bands.
type VWAPZone string

const (
	VWAPZoneInner   VWAPZone = "inner"
	VWAPZoneMid     VWAPZone = "mid"
	VWAPZoneOuter   VWAPZone = "outer"
	VWAPZoneUnknown VWAPZone = "unknown"
)

// VolatilityRegime is C2/C4's short-hand volatility label, used by C8's
// trailing gates ("not squeeze").
type VolatilityRegime string

const (
	VolSqueeze  VolatilityRegime = "squeeze"
	VolNormal   VolatilityRegime = "normal"
	VolExpanded VolatilityRegime = "expanded"
	VolUnknown  VolatilityRegime = "unknown"
)

// Features is the indicator vector C2 computes for one (symbol, timeframe)
// candle slice. All fields use the tagged-unavailable convention: a field
// the engine could not compute (insufficient candles, etc.) is
// OptionalDecimal{Valid:false}, never a silent zero.
type Features struct {
	EMA20  OptionalDecimal
	EMA50  OptionalDecimal
	EMA200 OptionalDecimal

	RSI14 OptionalDecimal

	ADX14   OptionalDecimal
	DIPlus  OptionalDecimal
	DIMinus OptionalDecimal

	ATR14        OptionalDecimal
	ATRBaseline  OptionalDecimal // rolling 50-period ATR average, used for the VOLATILE ratio test

	MACD       OptionalDecimal
	MACDSignal OptionalDecimal
	MACDHist   OptionalDecimal

	BBUpper  OptionalDecimal
	BBMiddle OptionalDecimal
	BBLower  OptionalDecimal
	BBWidth  OptionalDecimal
	BBWidthMedian20 OptionalDecimal

	VWAPSession OptionalDecimal
	VWAPSigma1Upper OptionalDecimal
	VWAPSigma1Lower OptionalDecimal
	VWAPZone    VWAPZone

	SessionHigh OptionalDecimal
	SessionLow  OptionalDecimal
	PDH         OptionalDecimal
	PDL         OptionalDecimal

	EngulfingBull  PatternFlag
	EngulfingBear  PatternFlag
	Hammer         PatternFlag
	MorningStar    PatternFlag
	EveningStar    PatternFlag
	RejectionWickUp   PatternFlag
	RejectionWickDown PatternFlag

	Structure StructureState
	VolRegime VolatilityRegime

	LastSwingHigh OptionalDecimal
	LastSwingLow  OptionalDecimal
}
