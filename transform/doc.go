// Package transform rewrites absolute pixel lengths in CSS declaration values
// (and optionally @media parameters) into root-relative lengths.
//
// A Transformer is built once from Options and then applied to any number of
// stylesheets:
//
//	t, err := transform.New(transform.DefaultOptions(), log)
//	if err != nil {
//		return err
//	}
//	stats, err := t.Process(sheet)
//
// Options usually come from a loosely typed map (JSON or YAML) and go
// through Decode, which first applies NormalizeLegacy. Legacy option names
// (root_value, unit_precision, selector_black_list, prop_white_list,
// propWhiteList, media_query) are mapped onto their current names.
//
// Compatibility quirk: an EMPTY legacy property list
// (prop_white_list: [] or propWhiteList: []) given without an explicit
// propList means "match every property" and becomes propList ["*"]. An
// empty propList under its current name matches nothing. Do not generalize
// this rule to other options.
//
// Processing of one stylesheet is a single synchronous pass. Everything that
// may fail (exclusion, root value evaluation, selector patterns) is evaluated
// before the first mutation so a failed call leaves the stylesheet untouched.
// A Transformer is read-only after New and may be shared by goroutines
// working on different stylesheets.
package transform
