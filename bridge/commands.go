package bridge

// Commands the worker must implement. Names are part of the protocol.
const (
	cmdResolveName = "resolveName"
	cmdClassInfo   = "classInfo"
	cmdFuncInfo    = "funcInfo"

	cmdCallFun      = "callFun"
	cmdCallMethod   = "callMethod"
	cmdCallObj      = "callObj"
	cmdCreateObject = "createObject"

	cmdGetProperty   = "getProperty"
	cmdSetProperty   = "setProperty"
	cmdUnsetProperty = "unsetProperty"

	cmdGetConst  = "getConst"
	cmdSetConst  = "setConst"
	cmdGetGlobal = "getGlobal"
	cmdSetGlobal = "setGlobal"

	cmdListClasses    = "listClasses"
	cmdListFuns       = "listFuns"
	cmdListConsts     = "listConsts"
	cmdListGlobals    = "listGlobals"
	cmdListEverything = "listEverything"

	cmdCount          = "count"
	cmdStartIteration = "startIteration"
	cmdNextIteration  = "nextIteration"

	cmdHasItem = "hasItem"
	cmdGetItem = "getItem"
	cmdSetItem = "setItem"
	cmdDelItem = "delItem"

	cmdRepr = "repr"
	cmdStr  = "str"
)

// Capability tags the materializer recognizes. A class carrying one of these
// anywhere in its ancestor graph gains the corresponding proxy behavior.
const (
	capCountable   = "Countable"
	capTraversable = "Traversable"
	capIterator    = "Iterator"
	capArrayAccess = "ArrayAccess"
	capThrowable   = "Throwable"
	capClosure     = "Closure"
)
