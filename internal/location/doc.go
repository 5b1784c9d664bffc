/*
Package location assigns stable identities to the elements produced while a
document is evaluated.

An element's identity is derived from its provenance: the path of
construction sites that led to it, such as `doc[0].repeat[2].rows[1].text[0]`.
Content is regenerated from scratch on every compilation pass, but the
provenance of a construct does not change between passes, so hashing the path
yields the same Location for the same semantic element every time.

Paths are rendered and parsed in the canonical `name[index]` dotted format.
A Registry tracks the assignments of one pass and disambiguates the rare case
of a path being constructed twice.
*/
package location
