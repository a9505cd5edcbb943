// Package conditional implements conditional compilation through comment
// markers.
//
// Markers are block comments:
//
//	/*[a, b]{}*/   comment out this line unless a and b are defined
//	/*[a]{*/       open a block, commented out unless a is defined
//	/*}*/          close the innermost block
//	/*<a, b>*/     define a and b for every following line and artifact
//	/*[a, b]<>*/   same as /*<a, b>*/
//
// A marker without a name list is unconditional. In release mode every
// marker is disallowed, including unconditional ones.
//
// The scan is a single forward pass over lines. Only the outermost
// disallowed block is tracked; nested markers inside it move the depth
// counter but never start a second span. When the outermost block closes,
// every line of the span gets "//" inserted at the span's shared indent.
// A line whose first non-blank text is "//" is inert, so processing the
// output again changes nothing.
//
// Names are kept in a caller-owned Registry that outlives a single scan:
// a name defined while processing one artifact is visible to every artifact
// processed after it. Definitions made by a scan are committed only when
// the scan succeeds.
package conditional
