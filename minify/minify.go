package minify

import (
	"regexp"

	"github.com/svdmin/minify"
	"github.com/svdmin/minify/svd"
	"github.com/svdmin/minify/xml"
)

// Mimetypes of the default minifiers.
const (
	SVDMimetype       = "text/x-svd"
	SVDSchemaMimetype = "application/x-svd+json"
	XMLMimetype       = "text/xml"
)

// Default minifiers for SVD and XML, with svd and xml file extensions mapped to them.
var Default *minify.M

func init() {
	Default = minify.New()
	Default.AddFunc(SVDMimetype, xml.Minify)
	Default.AddFunc(SVDSchemaMimetype, svd.Minify)
	Default.AddFuncRegexp(regexp.MustCompile("[/+]xml$"), xml.Minify)

	Default.AddExt("svd", SVDMimetype)
	Default.AddExt("xml", XMLMimetype)
}

// SVD string minifier renaming tags to single characters, using all default minifiers
func SVD(s string) (string, error) {
	return Default.String(SVDMimetype, s)
}

// SVDSchema string minifier converting an SVD peripheral to JSON, using all default minifiers
func SVDSchema(s string) (string, error) {
	return Default.String(SVDSchemaMimetype, s)
}

// XML string minifier using all default minifiers
func XML(s string) (string, error) {
	return Default.String(XMLMimetype, s)
}

// File minifies a file by its extension using all default minifiers
func File(filename string) (string, error) {
	return Default.File(filename)
}
