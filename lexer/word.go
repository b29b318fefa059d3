package lexer

// Word enumerates every reserved identifier of the language: command and
// test names, tagged-argument names and match-type keywords. Capability
// names are not words; they are plain strings matched by the interpreter.
type Word int

const (
	WordNone Word = iota

	// Commands.
	WordRequire
	WordIf
	WordElsIf
	WordElse
	WordKeep
	WordFileInto
	WordRedirect
	WordDiscard
	WordStop
	WordReject
	WordEreject
	WordError
	WordSet
	WordAddHeader
	WordDeleteHeader
	WordNotify
	WordVacation
	WordInclude
	WordReturn
	WordGlobal
	WordForEveryPart
	WordBreak
	WordReplace
	WordEnclose
	WordExtractText
	WordConvert
	WordSetFlag
	WordAddFlag
	WordRemoveFlag

	// Tests.
	WordAddress
	WordAllOf
	WordAnyOf
	WordEnvelope
	WordExists
	WordFalse
	WordTrue
	WordHeader
	WordNot
	WordSize
	WordString
	WordBody
	WordDate
	WordCurrentDate
	WordDuplicate
	WordSpamTest
	WordVirusTest
	WordEnvironment
	WordIhave
	WordHasFlag
	WordMailboxExists
	WordSpecialUseExists
	WordMetadata
	WordMetadataExists
	WordServerMetadata
	WordServerMetadataExists
	WordValidNotifyMethod
	WordNotifyMethodCapability
	WordValidExtList
	WordList

	// Tagged arguments.
	WordAll
	WordLocalPart
	WordDomain
	WordUser
	WordDetail
	WordIs
	WordContains
	WordMatches
	WordRegex
	WordValue
	WordCount
	WordComparator
	WordOver
	WordUnder
	WordCopy
	WordCreate
	WordMailboxId
	WordSpecialUse
	WordFlags
	WordFcc
	WordFrom
	WordImportance
	WordOptions
	WordMessage
	WordSubject
	WordDays
	WordSeconds
	WordAddresses
	WordMime
	WordAnyChild
	WordType
	WordSubtype
	WordContentType
	WordParam
	WordHandle
	WordLast
	WordIndex
	WordZone
	WordOriginalZone
	WordPersonal
	WordOnce
	WordOptional
	WordRaw
	WordText
	WordContent
	WordLower
	WordUpper
	WordLowerFirst
	WordUpperFirst
	WordQuoteWildcard
	WordQuoteRegex
	WordEncodeURL
	WordLength
	WordPercent
	WordUniqueId
	WordHeaders
	WordName
	WordFirst
)

var words = map[string]Word{
	"require":      WordRequire,
	"if":           WordIf,
	"elsif":        WordElsIf,
	"else":         WordElse,
	"keep":         WordKeep,
	"fileinto":     WordFileInto,
	"redirect":     WordRedirect,
	"discard":      WordDiscard,
	"stop":         WordStop,
	"reject":       WordReject,
	"ereject":      WordEreject,
	"error":        WordError,
	"set":          WordSet,
	"addheader":    WordAddHeader,
	"deleteheader": WordDeleteHeader,
	"notify":       WordNotify,
	"vacation":     WordVacation,
	"include":      WordInclude,
	"return":       WordReturn,
	"global":       WordGlobal,
	"foreverypart": WordForEveryPart,
	"break":        WordBreak,
	"replace":      WordReplace,
	"enclose":      WordEnclose,
	"extracttext":  WordExtractText,
	"convert":      WordConvert,
	"setflag":      WordSetFlag,
	"addflag":      WordAddFlag,
	"removeflag":   WordRemoveFlag,

	"address":                WordAddress,
	"allof":                  WordAllOf,
	"anyof":                  WordAnyOf,
	"envelope":               WordEnvelope,
	"exists":                 WordExists,
	"false":                  WordFalse,
	"true":                   WordTrue,
	"header":                 WordHeader,
	"not":                    WordNot,
	"size":                   WordSize,
	"string":                 WordString,
	"body":                   WordBody,
	"date":                   WordDate,
	"currentdate":            WordCurrentDate,
	"duplicate":              WordDuplicate,
	"spamtest":               WordSpamTest,
	"virustest":              WordVirusTest,
	"environment":            WordEnvironment,
	"ihave":                  WordIhave,
	"hasflag":                WordHasFlag,
	"mailboxexists":          WordMailboxExists,
	"specialuse_exists":      WordSpecialUseExists,
	"metadata":               WordMetadata,
	"metadataexists":         WordMetadataExists,
	"servermetadata":         WordServerMetadata,
	"servermetadataexists":   WordServerMetadataExists,
	"valid_notify_method":    WordValidNotifyMethod,
	"notify_method_capability": WordNotifyMethodCapability,
	"valid_ext_list":         WordValidExtList,
	"list":                   WordList,

	"all":           WordAll,
	"localpart":     WordLocalPart,
	"domain":        WordDomain,
	"user":          WordUser,
	"detail":        WordDetail,
	"is":            WordIs,
	"contains":      WordContains,
	"matches":       WordMatches,
	"regex":         WordRegex,
	"value":         WordValue,
	"count":         WordCount,
	"comparator":    WordComparator,
	"over":          WordOver,
	"under":         WordUnder,
	"copy":          WordCopy,
	"create":        WordCreate,
	"mailboxid":     WordMailboxId,
	"specialuse":    WordSpecialUse,
	"flags":         WordFlags,
	"fcc":           WordFcc,
	"from":          WordFrom,
	"importance":    WordImportance,
	"options":       WordOptions,
	"message":       WordMessage,
	"subject":       WordSubject,
	"days":          WordDays,
	"seconds":       WordSeconds,
	"addresses":     WordAddresses,
	"mime":          WordMime,
	"anychild":      WordAnyChild,
	"type":          WordType,
	"subtype":       WordSubtype,
	"contenttype":   WordContentType,
	"param":         WordParam,
	"handle":        WordHandle,
	"last":          WordLast,
	"index":         WordIndex,
	"zone":          WordZone,
	"originalzone":  WordOriginalZone,
	"personal":      WordPersonal,
	"once":          WordOnce,
	"optional":      WordOptional,
	"raw":           WordRaw,
	"text":          WordText,
	"content":       WordContent,
	"lower":         WordLower,
	"upper":         WordUpper,
	"lowerfirst":    WordLowerFirst,
	"upperfirst":    WordUpperFirst,
	"quotewildcard": WordQuoteWildcard,
	"quoteregex":    WordQuoteRegex,
	"encodeurl":     WordEncodeURL,
	"length":        WordLength,
	"percent":       WordPercent,
	"uniqueid":      WordUniqueId,
	"headers":       WordHeaders,
	"name":          WordName,
	"first":         WordFirst,
}

var wordNames = func() map[Word]string {
	m := make(map[Word]string, len(words))
	for s, w := range words {
		m[w] = s
	}
	return m
}()

// LookupWord maps a lowercase identifier to its reserved word, if any.
func LookupWord(s string) (Word, bool) {
	w, ok := words[s]
	return w, ok
}

func (w Word) String() string {
	if s, ok := wordNames[w]; ok {
		return s
	}
	return "<unknown>"
}
