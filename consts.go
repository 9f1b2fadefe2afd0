package firebird

// Wire protocol versions. Version 13 is the first generation this client
// speaks; 16 is the newest. Features introduced by the fourth server
// generation (INT128, DECFLOAT, zoned times, read consistency) require
// version 16 on the negotiated connection.
const (
	protocolVersion13 = 13
	protocolVersion14 = 14
	protocolVersion15 = 15
	protocolVersion16 = 16

	protocolFlag = 0x8000

	archGeneric = 1

	ptypeBatchSend = 3
	ptypeLazySend  = 5

	// op_accept weight flags
	pCompFlagCompress = 0x0100
)

// Time values travel in units of 1/10,000 second.
const (
	timeUnitsPerSecond = 10000
	nsPerTimeUnit      = 100000
)

// Connect identification block tags.
const (
	cnctUser             = 1
	cnctPasswd           = 2
	cnctHost             = 4
	cnctGroup            = 5
	cnctUserVerification = 6
	cnctSpecificData     = 7
	cnctPluginName       = 8
	cnctLogin            = 9
	cnctPluginList       = 10
	cnctClientCrypt      = 11

	wireCryptDisabled = 1
	wireCryptEnabled  = 2
)

// Operation codes.
const (
	opConnect           = 1
	opExit              = 2
	opAccept            = 3
	opReject            = 4
	opDisconnect        = 6
	opResponse          = 9
	opAttach            = 19
	opCreate            = 20
	opDetach            = 21
	opTransaction       = 29
	opCommit            = 30
	opRollback          = 31
	opOpenBlob          = 35
	opGetSegment        = 36
	opPutSegment        = 37
	opCloseBlob         = 39
	opInfoDatabase      = 40
	opInfoTransaction   = 42
	opQueEvents         = 48
	opCancelEvents      = 49
	opCommitRetaining   = 50
	opEvent             = 52
	opConnectRequest    = 53
	opCreateBlob2       = 57
	opAllocateStatement = 62
	opExecute           = 63
	opExecuteImmediate  = 64
	opFetch             = 65
	opFetchResponse     = 66
	opFreeStatement     = 67
	opPrepareStatement  = 68
	opInfoSQL           = 70
	opDummy             = 71
	opExecute2          = 76
	opSQLResponse       = 78
	opDropDatabase      = 81
	opRollbackRetaining = 86
	opCancel            = 91
	opContAuth          = 92
	opPing              = 93
	opAcceptData        = 94
	opCrypt             = 96
	opCryptKeyCallback  = 97
	opCondAccept        = 98
)

// Database parameter block tags.
const (
	iscDpbVersion1         = 1
	iscDpbPageSize         = 4
	iscDpbForceWrite       = 24
	iscDpbUserName         = 28
	iscDpbPassword         = 29
	iscDpbLcCtype          = 48
	iscDpbOverwrite        = 54
	iscDpbSQLRoleName      = 60
	iscDpbSQLDialect       = 63
	iscDpbProcessID        = 71
	iscDpbProcessName      = 74
	iscDpbUTF8Filename     = 77
	iscDpbSpecificAuthData = 84
	iscDpbAuthPluginList   = 85
	iscDpbAuthPluginName   = 86
	iscDpbSessionTimeZone  = 91
)

// Transaction parameter block tags.
const (
	iscTpbVersion3         = 3
	iscTpbConsistency      = 1
	iscTpbConcurrency      = 2
	iscTpbWait             = 6
	iscTpbNowait           = 7
	iscTpbRead             = 8
	iscTpbWrite            = 9
	iscTpbIgnoreLimbo      = 14
	iscTpbReadCommitted    = 15
	iscTpbAutocommit       = 16
	iscTpbRecVersion       = 17
	iscTpbNoRecVersion     = 18
	iscTpbRestartRequests  = 19
	iscTpbNoAutoUndo       = 20
	iscTpbLockTimeout      = 21
	iscTpbReadConsistency  = 22
)

// Information request / response tags.
const (
	iscInfoEnd       = 1
	iscInfoTruncated = 2
	iscInfoError     = 3

	iscInfoSQLStmtType     = 21
	iscInfoSQLRecords      = 23
	iscInfoReqSelectCount  = 13
	iscInfoReqInsertCount  = 14
	iscInfoReqUpdateCount  = 15
	iscInfoReqDeleteCount  = 16

	iscInfoSQLSelect       = 4
	iscInfoSQLBind         = 5
	iscInfoSQLNumVariables = 6
	iscInfoSQLDescribeVars = 7
	iscInfoSQLDescribeEnd  = 8
	iscInfoSQLSqldaSeq     = 9
	iscInfoSQLType         = 11
	iscInfoSQLSubType      = 12
	iscInfoSQLScale        = 13
	iscInfoSQLLength       = 14
	iscInfoSQLNullInd      = 15
	iscInfoSQLField        = 16
	iscInfoSQLRelation     = 17
	iscInfoSQLOwner        = 18
	iscInfoSQLAlias        = 19
	iscInfoSQLSqldaStart   = 20
)

// Statement types reported by isc_info_sql_stmt_type.
const (
	iscInfoSQLStmtSelect        = 1
	iscInfoSQLStmtInsert        = 2
	iscInfoSQLStmtUpdate        = 3
	iscInfoSQLStmtDelete        = 4
	iscInfoSQLStmtDDL           = 5
	iscInfoSQLStmtExecProcedure = 8
	iscInfoSQLStmtStartTrans    = 9
	iscInfoSQLStmtCommit        = 10
	iscInfoSQLStmtRollback      = 11
	iscInfoSQLStmtSelectForUpd  = 12
)

// Status vector argument tags.
const (
	iscArgEnd         = 0
	iscArgGds         = 1
	iscArgString      = 2
	iscArgNumber      = 4
	iscArgInterpreted = 5
	iscArgSQLState    = 19
)

// SQL type codes as they appear in column descriptors. The low bit carries
// the nullable flag and is masked off before dispatch.
const (
	sqlTypeText        = 452
	sqlTypeVarying     = 448
	sqlTypeShort       = 500
	sqlTypeLong        = 496
	sqlTypeFloat       = 482
	sqlTypeDouble      = 480
	sqlTypeDFloat      = 530
	sqlTypeTimestamp   = 510
	sqlTypeBlob        = 520
	sqlTypeArray       = 540
	sqlTypeQuad        = 550
	sqlTypeTime        = 560
	sqlTypeDate        = 570
	sqlTypeInt64       = 580
	sqlTypeInt128      = 32752
	sqlTypeTimestampTZ = 32754
	sqlTypeTimeTZ      = 32756
	sqlTypeDec16       = 32760
	sqlTypeDec34       = 32762
	sqlTypeBoolean     = 32764
	sqlTypeNull        = 32766
)

// BLR type codes used when describing parameter messages.
const (
	blrText      = 14
	blrText2     = 15
	blrShort     = 7
	blrLong      = 8
	blrQuad      = 9
	blrInt64     = 16
	blrInt128    = 26
	blrFloat     = 10
	blrDouble    = 27
	blrTimestamp = 35
	blrVarying   = 37
	blrVarying2  = 38
	blrBlobID    = 45
	blrDate      = 12
	blrTime      = 13
	blrBool      = 23
	blrDec64     = 24
	blrDec128    = 25

	blrTimeTZ      = 28
	blrTimestampTZ = 29
	blrVersion5    = 5
	blrBegin       = 2
	blrMessage     = 4
	blrEnd         = 255
)

// Event parameter block.
const (
	epbVersion1 = 1

	// Firebird rejects registrations above this many names.
	maxEventsPerRegistration = 15

	pReqAsync = 1
)

// blob segment ceiling per op_get_segment request
const blobSegmentSize = 32 * 1024
