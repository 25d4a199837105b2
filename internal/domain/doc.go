// Package domain models seismic site records and the hazard assessment
// derived from them.
//
// # Data Source
//
// Site records originate from a seismic risk dataset with one row per city.
// The upstream collector publishes each row as flat JSON to the Kafka source
// topic, keyed by column header:
//
//	{"City":"Guwahati","Average_Magnitude":5.8,"Depth_km":12,
//	 "Nearby_Fault_Activity":"High","Soil_Type":"Very Soft"}
//
// Numeric columns may arrive as JSON numbers or as numeric strings. They are
// coerced on read; see [SiteRecord].
//
// # Hazard Score
//
// The hazard score estimates shaking severity if an earthquake occurs:
//
//	score = (1.4·M + 0.6·10/(D+1) + 1.5·F) · S
//
// where M is the average magnitude, D the focal depth in km (shallower is
// worse), F the fault activity factor and S the soil amplification factor:
//
//	Fault activity:  Low 0.6 | Medium 0.8 | High 1.0          (default Low)
//	Soil type:       Rock 0.8 | Stiff 0.9 | Soil 1.0 | Very Soft 1.2  (default Soil)
//
// Absent magnitude and depth default to 0. The result is clamped to [0, 10]
// and rounded to two decimals.
//
// # Hazard Level
//
//	score < 3.5 Low | < 6.0 Moderate | < 8.0 High | otherwise Very High
//
// # Fail-Soft Defaults
//
// Malformed input never aborts an assessment. A score that cannot be computed
// is reported as 0 and a level that cannot be classified as Low, matching the
// behavior downstream consumers already rely on. [HazardScore] and
// [EvaluateHazardLevel] additionally expose whether a value was defaulted and
// why, so callers can tell a computed Low from a guessed one.
//
// # Supplementary Scores
//
// When the record carries historical activity columns, an event likelihood
// score ln((freq + 1.5·activity)/(years since last + 1)) is attached. When it
// carries damage columns, a financial impact estimate in INR is attached.
//
// # ID Generation
//
// Assessment IDs are name-based UUIDs (SHA-1) of the site's identifying and
// scoring fields. Reprocessing the same record produces the same ID, which
// keeps downstream upserts idempotent. See [generateID].
package domain
